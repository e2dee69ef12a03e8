// Package events publishes a best-effort notification for every
// committed ledger operation. Publishing never gates or rolls back the
// transaction it describes: by the time an event reaches this package
// the posting has already committed, so a publish failure is logged
// and swallowed, not surfaced to the caller.
package events

import (
	"encoding/json"
	"time"

	"github.com/IBM/sarama"
	"go.uber.org/zap"

	"github.com/coreledger/wallet-ledger/pkg/ledger"
)

const topicOperationPosted = "ledger.entry.posted"

// Config names the Kafka brokers events are published to.
type Config struct {
	Brokers []string
}

// NewProducer builds a synchronous Kafka producer configured to wait for
// all in-sync replicas before acknowledging, matching how this domain
// treats every other write path (durability over throughput).
func NewProducer(cfg Config) (sarama.SyncProducer, error) {
	saramaConfig := sarama.NewConfig()
	saramaConfig.Producer.RequiredAcks = sarama.WaitForAll
	saramaConfig.Producer.Retry.Max = 3
	saramaConfig.Producer.Return.Successes = true
	return sarama.NewSyncProducer(cfg.Brokers, saramaConfig)
}

// operationPosted is the wire shape published for each committed
// operation that touched the journal.
type operationPosted struct {
	Operation   string    `json:"operation"`
	EntryID     string    `json:"entry_id,omitempty"`
	AccountID   string    `json:"account_id,omitempty"`
	WalletID    string    `json:"wallet_id,omitempty"`
	AmountMinor int64     `json:"amount_minor,omitempty"`
	OccurredAt  time.Time `json:"occurred_at"`
}

// Publisher implements ledger.OperationLogger, translating each
// successfully committed operation into a best-effort Kafka event.
type Publisher struct {
	producer sarama.SyncProducer
	log      *zap.Logger
	now      func() time.Time
}

func NewPublisher(producer sarama.SyncProducer, log *zap.Logger, now func() time.Time) *Publisher {
	return &Publisher{producer: producer, log: log, now: now}
}

func (p *Publisher) LogOperation(entry ledger.OperationLog) {
	if entry.Error != nil || entry.EntryID.IsZero() {
		return
	}
	payload, err := json.Marshal(operationPosted{
		Operation:   entry.Operation,
		EntryID:     entry.EntryID.String(),
		AccountID:   entry.AccountID.String(),
		WalletID:    entry.WalletID.String(),
		AmountMinor: entry.AmountMinor,
		OccurredAt:  p.now(),
	})
	if err != nil {
		p.log.Warn("events: marshal operation event", zap.Error(err))
		return
	}
	msg := &sarama.ProducerMessage{
		Topic: topicOperationPosted,
		Key:   sarama.StringEncoder(entry.EntryID.String()),
		Value: sarama.ByteEncoder(payload),
	}
	if _, _, err := p.producer.SendMessage(msg); err != nil {
		p.log.Warn("events: publish operation event", zap.String("entry_id", entry.EntryID.String()), zap.Error(err))
	}
}

// Close releases the underlying producer's connections.
func (p *Publisher) Close() error {
	return p.producer.Close()
}
