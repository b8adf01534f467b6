package remote

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"strings"

	"golang.org/x/oauth2/google"
	"google.golang.org/api/option"
	"google.golang.org/api/sheets/v4"
)

// columns fixes the header row written for each collection's sheet.
var columns = map[Collection][]string{
	Users:    {"id", "username", "email", "name", "role", "isVerified", "password"},
	Projects: {"id", "name", "ownerId", "ownerName", "client", "startDate", "endDate", "description"},
	Tasks:    {"id", "projectId", "projectName", "title", "ownerId", "ownerName", "client", "startDate", "endDate", "notes", "status"},
}

var boolColumns = map[string]bool{"isVerified": true}

// valuesAPI is the slice of the Sheets values API the client needs.
type valuesAPI interface {
	get(ctx context.Context, spreadsheetID, rng string) ([][]interface{}, error)
	clear(ctx context.Context, spreadsheetID, rng string) error
	update(ctx context.Context, spreadsheetID, rng string, rows [][]interface{}) error
}

// SheetsClient reads and writes collections directly through the Google Sheets
// API: one sheet per collection, first row holds the JSON field names.
type SheetsClient struct {
	values        valuesAPI
	spreadsheetID string
}

func NewSheetsClient(ctx context.Context, spreadsheetID, credentialsFile string) (*SheetsClient, error) {
	creds, err := loadCredentials(ctx, credentialsFile)
	if err != nil {
		return nil, err
	}

	svc, err := sheets.NewService(ctx, option.WithCredentials(creds))
	if err != nil {
		return nil, fmt.Errorf("unable to create Sheets client: %w", err)
	}

	return &SheetsClient{values: &sheetsValues{svc: svc}, spreadsheetID: spreadsheetID}, nil
}

func loadCredentials(ctx context.Context, credentialsFile string) (*google.Credentials, error) {
	if credentialsFile == "" {
		creds, err := google.FindDefaultCredentials(ctx, sheets.SpreadsheetsScope)
		if err != nil {
			return nil, fmt.Errorf("find default google credentials: %w", err)
		}
		return creds, nil
	}

	b, err := os.ReadFile(credentialsFile)
	if err != nil {
		return nil, fmt.Errorf("unable to read credentials file %s: %w", credentialsFile, err)
	}

	creds, err := google.CredentialsFromJSON(ctx, b, sheets.SpreadsheetsScope)
	if err != nil {
		return nil, fmt.Errorf("unable to parse credentials file: %w", err)
	}
	return creds, nil
}

func (c *SheetsClient) Fetch(ctx context.Context, col Collection) (json.RawMessage, error) {
	if !col.IsValid() {
		return nil, fmt.Errorf("%w: %q", ErrUnknownCollection, col)
	}

	rows, err := c.values.get(ctx, c.spreadsheetID, string(col))
	if err != nil {
		return nil, fmt.Errorf("%w: fetch %s: %v", ErrNetworkFailure, col, err)
	}

	records := rowsToRecords(rows)

	b, err := json.Marshal(records)
	if err != nil {
		return nil, err
	}
	return b, nil
}

func (c *SheetsClient) SaveAll(ctx context.Context, col Collection, data json.RawMessage) error {
	cols, ok := columns[col]
	if !ok {
		return fmt.Errorf("%w: %q", ErrUnknownCollection, col)
	}

	var records []map[string]interface{}
	if err := json.Unmarshal(data, &records); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidPayload, err)
	}

	rows := recordsToRows(cols, records)

	if err := c.values.clear(ctx, c.spreadsheetID, string(col)); err != nil {
		return fmt.Errorf("%w: clear %s: %v", ErrNetworkFailure, col, err)
	}

	if err := c.values.update(ctx, c.spreadsheetID, string(col)+"!A1", rows); err != nil {
		return fmt.Errorf("%w: update %s: %v", ErrNetworkFailure, col, err)
	}

	return nil
}

// rowsToRecords turns formatted cell text into JSON objects keyed by the header row.
func rowsToRecords(rows [][]interface{}) []map[string]interface{} {
	records := make([]map[string]interface{}, 0, len(rows))
	if len(rows) == 0 {
		return records
	}

	header := make([]string, len(rows[0]))
	for i, h := range rows[0] {
		header[i] = strings.TrimSpace(fmt.Sprint(h))
	}

	for _, row := range rows[1:] {
		rec := make(map[string]interface{}, len(header))
		empty := true

		for i, name := range header {
			if name == "" || i >= len(row) {
				continue
			}
			cell := fmt.Sprint(row[i])
			if cell != "" {
				empty = false
			}

			if boolColumns[name] {
				v, _ := strconv.ParseBool(cell)
				rec[name] = v
				continue
			}
			rec[name] = cell
		}

		if !empty {
			records = append(records, rec)
		}
	}

	return records
}

func recordsToRows(cols []string, records []map[string]interface{}) [][]interface{} {
	rows := make([][]interface{}, 0, len(records)+1)

	header := make([]interface{}, len(cols))
	for i, c := range cols {
		header[i] = c
	}
	rows = append(rows, header)

	for _, rec := range records {
		row := make([]interface{}, len(cols))
		for i, c := range cols {
			switch v := rec[c].(type) {
			case nil:
				row[i] = ""
			case bool:
				row[i] = strconv.FormatBool(v)
			case string:
				row[i] = v
			default:
				row[i] = fmt.Sprint(v)
			}
		}
		rows = append(rows, row)
	}

	return rows
}

type sheetsValues struct {
	svc *sheets.Service
}

func (s *sheetsValues) get(ctx context.Context, spreadsheetID, rng string) ([][]interface{}, error) {
	resp, err := s.svc.Spreadsheets.Values.Get(spreadsheetID, rng).
		ValueRenderOption("FORMATTED_VALUE").
		Context(ctx).
		Do()
	if err != nil {
		return nil, err
	}
	return resp.Values, nil
}

func (s *sheetsValues) clear(ctx context.Context, spreadsheetID, rng string) error {
	_, err := s.svc.Spreadsheets.Values.Clear(spreadsheetID, rng, &sheets.ClearValuesRequest{}).
		Context(ctx).
		Do()
	return err
}

func (s *sheetsValues) update(ctx context.Context, spreadsheetID, rng string, rows [][]interface{}) error {
	_, err := s.svc.Spreadsheets.Values.Update(spreadsheetID, rng, &sheets.ValueRange{Values: rows}).
		ValueInputOption("RAW").
		Context(ctx).
		Do()
	return err
}
