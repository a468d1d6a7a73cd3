package dispatch

import (
	"context"
	"strconv"
	"sync"
	"time"

	"go.uber.org/zap"
)

const (
	BackendLog      = "log"
	logMaxBodyRunes = 320
)

type SentMessage struct {
	Contact Contact
	Body    string
}

// LogProvider accepts every message, logs it and keeps it in memory. It backs
// local development and the dispatch tests.
type LogProvider struct {
	mu       sync.Mutex
	log      *zap.Logger
	messages []SentMessage
	seq      int
	now      func() time.Time
}

func NewLog(log *zap.Logger) *LogProvider {
	return &LogProvider{
		log: log.Named("dispatch.log"),
		now: func() time.Time { return time.Now().UTC() },
	}
}

func (p *LogProvider) Name() string       { return BackendLog }
func (p *LogProvider) MaxBodyLength() int { return logMaxBodyRunes }

func (p *LogProvider) Send(ctx context.Context, contact Contact, body string) (Result, error) {
	p.mu.Lock()
	p.seq++
	id := "log-" + strconv.Itoa(p.seq)
	p.messages = append(p.messages, SentMessage{Contact: contact, Body: body})
	p.mu.Unlock()

	p.log.Info("message recorded",
		zap.String("contact", contact.Masked()),
		zap.Int("body_length", runeLen(body)),
		zap.String("message_id", id),
	)
	return Result{Backend: BackendLog, MessageID: id, AcceptedAt: p.now()}, nil
}

func (p *LogProvider) Diagnose(ctx context.Context) Report {
	return settingsReport(BackendLog, nil)
}

func (p *LogProvider) Messages() []SentMessage {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]SentMessage, len(p.messages))
	copy(out, p.messages)
	return out
}
