package amqp

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/faraway-yachting/Faraway-Yachting.app-sub011/internal/fiscal"
	"github.com/faraway-yachting/Faraway-Yachting.app-sub011/internal/log"
)

func TestNewReportRequestMessage(t *testing.T) {
	asOf := time.Date(2025, 3, 31, 15, 0, 0, 0, time.UTC)
	msg := NewReportRequestMessage("A", fiscal.Year{Start: 2024}, asOf)

	if _, err := uuid.Parse(msg.RequestID); err != nil {
		t.Fatalf("request id is not a uuid: %q", msg.RequestID)
	}
	if msg.FiscalYear != "2024-2025" || msg.AsOf != "2025-03-31" {
		t.Fatalf("unexpected message %+v", msg)
	}

	other := NewReportRequestMessage("A", fiscal.Year{Start: 2024}, time.Time{})
	if other.RequestID == msg.RequestID || other.AsOf != "" {
		t.Fatalf("unexpected second message %+v", other)
	}
}

func TestReportRequestMessage_Parse(t *testing.T) {
	tests := []struct {
		name    string
		msg     ReportRequestMessage
		wantErr bool
	}{
		{"valid", ReportRequestMessage{ProjectID: "A", FiscalYear: "2024-2025", AsOf: "2025-01-31"}, false},
		{"valid without as_of", ReportRequestMessage{ProjectID: "A", FiscalYear: "2024-2025"}, false},
		{"missing project", ReportRequestMessage{FiscalYear: "2024-2025"}, true},
		{"bad fiscal year", ReportRequestMessage{ProjectID: "A", FiscalYear: "2024-2026"}, true},
		{"bad as_of", ReportRequestMessage{ProjectID: "A", FiscalYear: "2024-2025", AsOf: "31/01/2025"}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fy, _, err := tt.msg.Parse()
			if tt.wantErr {
				if !errors.Is(err, ErrInvalidMessage) {
					t.Fatalf("expected ErrInvalidMessage, got %v", err)
				}
				return
			}
			if err != nil || fy.Start != 2024 {
				t.Fatalf("unexpected result %v %v", fy, err)
			}
		})
	}
}

func TestReportRequestMessage_InvalidJSON(t *testing.T) {
	if _, err := ReportRequestMessageFromJSON([]byte(`{"project_id":`)); err == nil {
		t.Fatal("expected decode error")
	}
}

func TestDispatch(t *testing.T) {
	ctx := context.Background()
	valid, _ := NewReportRequestMessage("A", fiscal.Year{Start: 2024}, time.Time{}).ToJSON()

	tests := []struct {
		name    string
		body    []byte
		handler RequestHandler
		want    outcome
	}{
		{"success acks", valid, func(context.Context, *ReportRequestMessage) error { return nil }, ack},
		{"malformed drops", []byte("not json"), func(context.Context, *ReportRequestMessage) error {
			t.Fatal("handler must not run")
			return nil
		}, drop},
		{"transient requeues", valid, func(context.Context, *ReportRequestMessage) error {
			return errors.New("source timeout")
		}, requeue},
		{"permanent drops", valid, func(context.Context, *ReportRequestMessage) error {
			return fmt.Errorf("project gone: %w", ErrPermanent)
		}, drop},
		{"invalid drops", valid, func(context.Context, *ReportRequestMessage) error {
			return fmt.Errorf("%w: bad year", ErrInvalidMessage)
		}, drop},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := dispatch(ctx, log.Default(log.ComponentAMQP), tt.body, tt.handler); got != tt.want {
				t.Fatalf("dispatch = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestReportGeneratedMessageFromJSON(t *testing.T) {
	msg, err := ReportGeneratedMessageFromJSON([]byte(`{"request_id":"r1","project_id":"A","fiscal_year":"2024-2025","status":"ok","base_currency":"THB","totals":{"income":"1000","management_fee":"100","expense":"380","profit":"520"},"warnings":2}`))
	if err != nil {
		t.Fatal(err)
	}
	if msg.Status != StatusOK || msg.Totals == nil || msg.Totals.Profit.String() != "520" || msg.Warnings != 2 {
		t.Fatalf("unexpected message %+v", msg)
	}

	if _, err := ReportGeneratedMessageFromJSON([]byte(`{"status":`)); err == nil {
		t.Fatal("expected decode error")
	}
}
