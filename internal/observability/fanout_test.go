package observability

import (
	"testing"

	"github.com/coreledger/wallet-ledger/pkg/ledger"
)

type recordingLogger struct {
	entries []ledger.OperationLog
}

func (r *recordingLogger) LogOperation(entry ledger.OperationLog) {
	r.entries = append(r.entries, entry)
}

func TestFanOutLoggerDispatchesToEverySink(t *testing.T) {
	t.Parallel()
	first := &recordingLogger{}
	second := &recordingLogger{}
	fanout := FanOutLogger{first, second}

	entry := ledger.OperationLog{Operation: "transfer.post"}
	fanout.LogOperation(entry)

	if len(first.entries) != 1 || first.entries[0].Operation != "transfer.post" {
		t.Fatalf("expected the first sink to record one entry, got %v", first.entries)
	}
	if len(second.entries) != 1 || second.entries[0].Operation != "transfer.post" {
		t.Fatalf("expected the second sink to record one entry, got %v", second.entries)
	}
}

func TestFanOutLoggerSkipsNilSinks(t *testing.T) {
	t.Parallel()
	recorder := &recordingLogger{}
	fanout := FanOutLogger{nil, recorder, nil}

	fanout.LogOperation(ledger.OperationLog{Operation: "hold.capture"})

	if len(recorder.entries) != 1 {
		t.Fatalf("expected the non-nil sink to still record, got %v", recorder.entries)
	}
}

func TestFanOutLoggerEmptyIsSafe(t *testing.T) {
	t.Parallel()
	var fanout FanOutLogger
	fanout.LogOperation(ledger.OperationLog{Operation: "refund.post"})
}
