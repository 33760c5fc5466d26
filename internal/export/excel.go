// Package export builds the staff-facing Excel report: one sheet of
// conversations, one of recent messages.
package export

import (
	"fmt"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/avilar/dealersync/internal/store"
)

const (
	conversationSheet = "Conversations"
	messageSheet      = "Messages"

	// Per-conversation cap on exported messages. The report is a
	// snapshot for staff, not a backup.
	messagesPerConversation = 500
	maxConversations        = 1000
)

// Workbook renders the current store contents into an xlsx file.
func Workbook(db *store.DB) (*excelize.File, error) {
	f := excelize.NewFile()
	index, err := f.NewSheet(conversationSheet)
	if err != nil {
		return nil, fmt.Errorf("create sheet: %w", err)
	}
	if _, err := f.NewSheet(messageSheet); err != nil {
		return nil, fmt.Errorf("create sheet: %w", err)
	}
	_ = f.DeleteSheet("Sheet1")
	f.SetActiveSheet(index)

	writeHeader(f, conversationSheet, []string{"ID", "Phone", "Vehicle", "Assigned user", "Last activity", "Messages"})
	writeHeader(f, messageSheet, []string{"Conversation", "Phone", "Direction", "Body", "Sent at"})

	convs, err := db.ListConversations(maxConversations, 0)
	if err != nil {
		return nil, fmt.Errorf("list conversations: %w", err)
	}

	msgRow := 2
	for i, c := range convs {
		count, err := db.CountMessages(c.ID)
		if err != nil {
			return nil, fmt.Errorf("count messages: %w", err)
		}

		row := i + 2
		setRow(f, conversationSheet, row,
			c.ID, c.PhoneNumber, c.VehicleID, c.UserID, formatTS(c.LastMessageAt), count)

		msgs, err := db.ListMessages(c.ID, 0, messagesPerConversation)
		if err != nil {
			return nil, fmt.Errorf("list messages: %w", err)
		}
		// ListMessages is newest-first; the report reads top-down oldest-first.
		for j := len(msgs) - 1; j >= 0; j-- {
			m := msgs[j]
			direction := "in"
			if m.FromMe {
				direction = "out"
			}
			setRow(f, messageSheet, msgRow, c.ID, c.PhoneNumber, direction, m.Body, formatTS(m.Timestamp))
			msgRow++
		}
	}

	return f, nil
}

func writeHeader(f *excelize.File, sheet string, headers []string) {
	for i, h := range headers {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		_ = f.SetCellValue(sheet, cell, h)
	}
}

func setRow(f *excelize.File, sheet string, row int, values ...any) {
	for i, v := range values {
		cell, _ := excelize.CoordinatesToCellName(i+1, row)
		_ = f.SetCellValue(sheet, cell, v)
	}
}

func formatTS(ms int64) string {
	if ms == 0 {
		return ""
	}
	return time.UnixMilli(ms).UTC().Format("2006-01-02 15:04:05")
}
