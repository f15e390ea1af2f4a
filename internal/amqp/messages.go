package amqp

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/faraway-yachting/Faraway-Yachting.app-sub011/internal/fiscal"
	"github.com/faraway-yachting/Faraway-Yachting.app-sub011/internal/report"
)

// Result statuses carried by ReportGeneratedMessage.
const (
	StatusOK       = "ok"
	StatusNotFound = "not_found"
	StatusInvalid  = "invalid"
)

var ErrInvalidMessage = errors.New("invalid message")

// ReportRequestMessage asks a worker to generate one report. The result is
// published as a ReportGeneratedMessage carrying the same RequestID.
type ReportRequestMessage struct {
	RequestID  string    `json:"request_id"`
	ProjectID  string    `json:"project_id"`
	FiscalYear string    `json:"fiscal_year"`
	AsOf       string    `json:"as_of,omitempty"` // YYYY-MM-DD; empty means now
	Timestamp  time.Time `json:"timestamp"`
}

func NewReportRequestMessage(projectID string, fy fiscal.Year, asOf time.Time) *ReportRequestMessage {
	msg := &ReportRequestMessage{
		RequestID:  uuid.NewString(),
		ProjectID:  projectID,
		FiscalYear: fy.String(),
		Timestamp:  time.Now(),
	}
	if !asOf.IsZero() {
		msg.AsOf = asOf.Format(time.DateOnly)
	}
	return msg
}

// Parse validates the message and returns its typed fields. asOf is zero
// when the message leaves it to the worker's clock.
func (m *ReportRequestMessage) Parse() (fy fiscal.Year, asOf time.Time, err error) {
	if strings.TrimSpace(m.ProjectID) == "" {
		return fy, asOf, fmt.Errorf("%w: missing project_id", ErrInvalidMessage)
	}
	fy, err = fiscal.ParseYear(m.FiscalYear)
	if err != nil {
		return fy, asOf, fmt.Errorf("%w: %v", ErrInvalidMessage, err)
	}
	if m.AsOf != "" {
		asOf, err = time.Parse(time.DateOnly, m.AsOf)
		if err != nil {
			return fy, asOf, fmt.Errorf("%w: as_of %q", ErrInvalidMessage, m.AsOf)
		}
	}
	return fy, asOf, nil
}

func (m *ReportRequestMessage) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

func ReportRequestMessageFromJSON(data []byte) (*ReportRequestMessage, error) {
	var msg ReportRequestMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	return &msg, nil
}

// ReportGeneratedMessage announces the outcome of a ReportRequestMessage.
type ReportGeneratedMessage struct {
	RequestID    string          `json:"request_id"`
	ProjectID    string          `json:"project_id"`
	FiscalYear   string          `json:"fiscal_year"`
	AsOf         string          `json:"as_of,omitempty"`
	Status       string          `json:"status"`
	Error        string          `json:"error,omitempty"`
	BaseCurrency string          `json:"base_currency,omitempty"`
	Totals       *report.Figures `json:"totals,omitempty"`
	Warnings     int             `json:"warnings"`
	GeneratedAt  time.Time       `json:"generated_at"`
}

func (m *ReportGeneratedMessage) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

func ReportGeneratedMessageFromJSON(data []byte) (*ReportGeneratedMessage, error) {
	var msg ReportGeneratedMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	return &msg, nil
}
