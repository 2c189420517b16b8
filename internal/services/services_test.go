package services

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	sqlite "github.com/glebarez/sqlite" // pure-Go SQLite (no CGO)
	"github.com/rs/zerolog"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/vallit/go-site-backend/internal/config"
	"github.com/vallit/go-site-backend/internal/domain"
	"github.com/vallit/go-site-backend/internal/notify"
	"github.com/vallit/go-site-backend/internal/pipeline"
	"github.com/vallit/go-site-backend/internal/repo"
)

// test DB helper
func newSvcDB(t *testing.T) *gorm.DB {
	t.Helper()

	dsn := filepath.Join(t.TempDir(), fmt.Sprintf("svc_%d.db", time.Now().UnixNano()))
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})
	if err := db.AutoMigrate(
		&domain.ChatSession{}, &domain.ChatMessage{},
		&domain.Appointment{}, &domain.ContactEntry{}, &domain.DataRequest{},
	); err != nil {
		t.Fatalf("automigrate: %v", err)
	}
	return db
}

func newSvcPipeline(db *gorm.DB) *pipeline.Pipeline {
	return pipeline.New(&repo.ActivityStore{DB: db}, 2*time.Second, zerolog.Nop())
}

// fakeNotifier records sent messages and optionally fails.
type fakeNotifier struct {
	mu   sync.Mutex
	sent []notify.Message
	err  error
}

func (f *fakeNotifier) Send(_ context.Context, m notify.Message) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.sent = append(f.sent, m)
	return nil
}

func (f *fakeNotifier) messages() []notify.Message {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]notify.Message, len(f.sent))
	copy(out, f.sent)
	return out
}

// fakeCompleter returns a fixed reply or error.
type fakeCompleter struct {
	reply string
	err   error
	calls int
}

func (f *fakeCompleter) Complete(_ context.Context, _, _ string) (string, error) {
	f.calls++
	return f.reply, f.err
}

func countRows(t *testing.T, db *gorm.DB, model any) int64 {
	t.Helper()
	var n int64
	if err := db.Model(model).Count(&n).Error; err != nil {
		t.Fatalf("count: %v", err)
	}
	return n
}

func TestChatService_SubmitPersistsBothSides(t *testing.T) {
	db := newSvcDB(t)
	comp := &fakeCompleter{reply: "Hello from Kian"}
	svc := &ChatService{DB: db, Pipeline: newSvcPipeline(db), Completer: comp, Logger: zerolog.Nop()}

	reply, out := svc.Submit(context.Background(), map[string]any{
		"message": "hello", "session_id": "s1",
	})
	if out.Status != pipeline.StatusAccepted {
		t.Fatalf("status = %v, want accepted", out.Status)
	}
	if reply != "Hello from Kian" {
		t.Fatalf("reply = %q", reply)
	}
	if comp.calls != 1 {
		t.Fatalf("completer calls = %d, want 1", comp.calls)
	}

	if n := countRows(t, db, &domain.ChatSession{}); n != 1 {
		t.Fatalf("sessions = %d, want 1", n)
	}
	var userMsg, botMsg domain.ChatMessage
	if err := db.First(&userMsg, "role = ?", domain.RoleUser).Error; err != nil {
		t.Fatalf("user message: %v", err)
	}
	if err := db.First(&botMsg, "role = ?", domain.RoleAssistant).Error; err != nil {
		t.Fatalf("assistant message: %v", err)
	}
	if userMsg.Content != "hello" || botMsg.Content != "Hello from Kian" {
		t.Fatalf("unexpected contents %q / %q", userMsg.Content, botMsg.Content)
	}
}

func TestChatService_CompletionFailureFallsBack(t *testing.T) {
	db := newSvcDB(t)
	comp := &fakeCompleter{err: errors.New("upstream down")}
	svc := &ChatService{DB: db, Pipeline: newSvcPipeline(db), Completer: comp, Logger: zerolog.Nop()}

	reply, out := svc.Submit(context.Background(), map[string]any{
		"message": "hello", "session_id": "s1",
	})
	if !out.Admitted() {
		t.Fatalf("status = %v, want admitted", out.Status)
	}
	if reply != FallbackReply {
		t.Fatalf("reply = %q, want fallback", reply)
	}
	// User message is still persisted; the fallback is stored as assistant.
	if n := countRows(t, db, &domain.ChatMessage{}); n != 2 {
		t.Fatalf("messages = %d, want 2", n)
	}
}

func TestChatService_ValidationRejectsBeforeAnyWrite(t *testing.T) {
	db := newSvcDB(t)
	comp := &fakeCompleter{reply: "x"}
	svc := &ChatService{DB: db, Pipeline: newSvcPipeline(db), Completer: comp, Logger: zerolog.Nop()}

	_, out := svc.Submit(context.Background(), map[string]any{"session_id": "s1"})
	if out.Status != pipeline.StatusRejectedValidation || out.Field != "message" {
		t.Fatalf("outcome = %+v, want message validation failure", out)
	}
	if comp.calls != 0 {
		t.Fatalf("completer should not be called on rejection")
	}
	if n := countRows(t, db, &domain.ChatMessage{}); n != 0 {
		t.Fatalf("messages = %d, want 0", n)
	}
}

func TestChatService_WindowLimitsUserSubmissions(t *testing.T) {
	db := newSvcDB(t)
	svc := &ChatService{
		DB:       db,
		Pipeline: newSvcPipeline(db),
		Limits: config.SubmissionConfig{
			Window:   time.Minute,
			MaxCount: 2,
		},
		Completer: &fakeCompleter{reply: "ok"},
		Logger:    zerolog.Nop(),
	}

	for i, msg := range []string{"one", "two"} {
		_, out := svc.Submit(context.Background(), map[string]any{"message": msg, "session_id": "s1"})
		if !out.Admitted() {
			t.Fatalf("submission %d rejected: %+v", i, out)
		}
	}
	_, out := svc.Submit(context.Background(), map[string]any{"message": "three", "session_id": "s1"})
	if out.Status != pipeline.StatusRejectedRateLimited {
		t.Fatalf("status = %v, want rate limited", out.Status)
	}
}

func TestChatService_LogInsertsWithoutRateLimit(t *testing.T) {
	db := newSvcDB(t)
	svc := &ChatService{DB: db, Pipeline: newSvcPipeline(db), Logger: zerolog.Nop()}

	for i := 0; i < 10; i++ {
		out := svc.Log(context.Background(), map[string]any{
			"session_id": "s1",
			"role":       domain.RoleAssistant,
			"content":    fmt.Sprintf("event %d", i),
			"metadata":   map[string]any{"seq": i},
		})
		if out.Status != pipeline.StatusAccepted {
			t.Fatalf("log %d: %+v", i, out)
		}
	}
	if n := countRows(t, db, &domain.ChatMessage{}); n != 10 {
		t.Fatalf("messages = %d, want 10", n)
	}
	var first domain.ChatMessage
	if err := db.First(&first, "content = ?", "event 0").Error; err != nil {
		t.Fatalf("first: %v", err)
	}
	if first.Metadata != `{"seq":0}` {
		t.Fatalf("metadata = %q", first.Metadata)
	}
}

func TestChatService_LogRejectsUnknownRole(t *testing.T) {
	db := newSvcDB(t)
	svc := &ChatService{DB: db, Pipeline: newSvcPipeline(db), Logger: zerolog.Nop()}

	out := svc.Log(context.Background(), map[string]any{
		"session_id": "s1", "role": "system", "content": "x",
	})
	if out.Status != pipeline.StatusRejectedValidation || out.Field != "role" {
		t.Fatalf("outcome = %+v, want role validation failure", out)
	}
}

func TestChatService_HistoryPaginatesAndChecksSession(t *testing.T) {
	db := newSvcDB(t)
	ctx := context.Background()
	svc := &ChatService{DB: db, Pipeline: newSvcPipeline(db), Logger: zerolog.Nop()}

	if _, _, err := svc.History(ctx, "missing", 1, 10); err != ErrSessionNotFound {
		t.Fatalf("err = %v, want ErrSessionNotFound", err)
	}

	if err := repo.UpsertSession(ctx, db, "s1", ""); err != nil {
		t.Fatalf("upsert: %v", err)
	}
	base := time.Now().UTC().Add(-time.Hour)
	for i := 0; i < 5; i++ {
		m := &domain.ChatMessage{
			ID: fmt.Sprintf("m%d", i), SessionID: "s1",
			Role: domain.RoleUser, Content: fmt.Sprintf("msg %d", i),
			CreatedAt: base.Add(time.Duration(i) * time.Minute),
		}
		if err := db.Create(m).Error; err != nil {
			t.Fatalf("seed: %v", err)
		}
	}

	items, total, err := svc.History(ctx, "s1", 2, 2)
	if err != nil {
		t.Fatalf("history: %v", err)
	}
	if total != 5 || len(items) != 2 {
		t.Fatalf("total=%d len=%d, want 5/2", total, len(items))
	}
	if items[0].Content != "msg 2" || items[1].Content != "msg 3" {
		t.Fatalf("unexpected page %+v", items)
	}
}

func TestBookingService_PersistsAndMails(t *testing.T) {
	db := newSvcDB(t)
	fn := &fakeNotifier{}
	svc := &BookingService{
		DB: db, Pipeline: newSvcPipeline(db),
		Notifier: fn, AdminEmail: "admin@vallit.net",
		ZoomLink: "https://zoom.us/j/123",
		Logger:   zerolog.Nop(),
	}

	id, out := svc.Book(context.Background(), map[string]any{
		"name":    "Ada Lovelace",
		"email":   "ada@example.com",
		"date":    "2026-09-14T15:00",
		"company": "ACME",
	})
	if out.Status != pipeline.StatusAccepted {
		t.Fatalf("status = %v: %+v", out.Status, out)
	}
	if id == "" {
		t.Fatalf("expected appointment id")
	}

	var a domain.Appointment
	if err := db.First(&a, "id = ?", id).Error; err != nil {
		t.Fatalf("load appointment: %v", err)
	}
	if a.Topic != "Consultation" {
		t.Fatalf("topic default = %q", a.Topic)
	}

	msgs := fn.messages()
	if len(msgs) != 2 {
		t.Fatalf("mails = %d, want 2", len(msgs))
	}
	recipients := map[string]bool{}
	for _, m := range msgs {
		recipients[m.To] = true
	}
	if !recipients["ada@example.com"] || !recipients["admin@vallit.net"] {
		t.Fatalf("unexpected recipients %v", recipients)
	}
	for _, m := range msgs {
		if m.To == "ada@example.com" && !strings.Contains(m.HTMLBody, "Montag, 14. September 2026") {
			t.Fatalf("user mail missing German date: %s", m.HTMLBody)
		}
	}
}

func TestBookingService_MailFailureStillAccepts(t *testing.T) {
	db := newSvcDB(t)
	fn := &fakeNotifier{err: errors.New("relay down")}
	svc := &BookingService{
		DB: db, Pipeline: newSvcPipeline(db),
		Notifier: fn, AdminEmail: "admin@vallit.net",
		Logger: zerolog.Nop(),
	}

	id, out := svc.Book(context.Background(), map[string]any{
		"name": "Ada", "email": "ada@example.com", "date": "2026-09-14",
	})
	if out.Status != pipeline.StatusPartialFailure {
		t.Fatalf("status = %v, want partial failure", out.Status)
	}
	if !out.Admitted() || id == "" {
		t.Fatalf("booking should be admitted with id")
	}
	if len(out.EffectErrors) != 2 {
		t.Fatalf("effect errors = %d, want 2", len(out.EffectErrors))
	}
	if n := countRows(t, db, &domain.Appointment{}); n != 1 {
		t.Fatalf("appointments = %d, want 1", n)
	}
}

func TestBookingService_RejectsBadDate(t *testing.T) {
	db := newSvcDB(t)
	svc := &BookingService{DB: db, Pipeline: newSvcPipeline(db), Logger: zerolog.Nop()}

	_, out := svc.Book(context.Background(), map[string]any{
		"name": "Ada", "email": "ada@example.com", "date": "next tuesday",
	})
	if out.Status != pipeline.StatusRejectedValidation || out.Field != "date" {
		t.Fatalf("outcome = %+v, want date validation failure", out)
	}
	if n := countRows(t, db, &domain.Appointment{}); n != 0 {
		t.Fatalf("appointments = %d, want 0", n)
	}
}

func TestContactService_PersistsAndMailsLead(t *testing.T) {
	db := newSvcDB(t)
	fn := &fakeNotifier{}
	svc := &ContactService{
		DB: db, Pipeline: newSvcPipeline(db),
		Notifier: fn, AdminEmail: "admin@vallit.net",
		Logger: zerolog.Nop(),
	}

	out := svc.Submit(context.Background(), map[string]any{
		"name":    "Grace",
		"company": "Navy",
		"email":   "grace@example.com",
		"message": "line one\nline two",
	})
	if out.Status != pipeline.StatusAccepted {
		t.Fatalf("status = %v: %+v", out.Status, out)
	}
	if n := countRows(t, db, &domain.ContactEntry{}); n != 1 {
		t.Fatalf("entries = %d, want 1", n)
	}
	msgs := fn.messages()
	if len(msgs) != 2 {
		t.Fatalf("mails = %d, want 2", len(msgs))
	}
	for _, m := range msgs {
		if m.To == "admin@vallit.net" {
			if !strings.Contains(m.HTMLBody, "line one<br>line two") {
				t.Fatalf("admin mail should keep line breaks: %s", m.HTMLBody)
			}
			if m.ReplyTo != "grace@example.com" {
				t.Fatalf("admin mail reply-to = %q", m.ReplyTo)
			}
		}
	}
}

func TestContactService_MissingCompanyRejected(t *testing.T) {
	db := newSvcDB(t)
	svc := &ContactService{DB: db, Pipeline: newSvcPipeline(db), Logger: zerolog.Nop()}

	out := svc.Submit(context.Background(), map[string]any{
		"name": "Grace", "email": "grace@example.com",
	})
	if out.Status != pipeline.StatusRejectedValidation || out.Field != "company" {
		t.Fatalf("outcome = %+v, want company validation failure", out)
	}
}

func TestDataRequestService_ReferenceIDMatchesRowAndMails(t *testing.T) {
	db := newSvcDB(t)
	fn := &fakeNotifier{}
	svc := &DataRequestService{
		DB: db, Pipeline: newSvcPipeline(db),
		Notifier: fn, AdminEmail: "admin@vallit.net",
		Logger: zerolog.Nop(),
	}

	id, out := svc.Submit(context.Background(), map[string]any{
		"email": "gdpr@example.com", "type": domain.RequestTypeDelete,
	})
	if out.Status != pipeline.StatusAccepted || id == "" {
		t.Fatalf("outcome = %+v id=%q", out, id)
	}

	var r domain.DataRequest
	if err := db.First(&r, "id = ?", id).Error; err != nil {
		t.Fatalf("load request: %v", err)
	}
	if r.Status != "PENDING" || r.RequestType != domain.RequestTypeDelete {
		t.Fatalf("unexpected row %+v", r)
	}

	for _, m := range fn.messages() {
		if !strings.Contains(m.HTMLBody, id) {
			t.Fatalf("mail missing reference id: %s", m.HTMLBody)
		}
		if m.To == "gdpr@example.com" && !strings.Contains(m.HTMLBody, "<strong>delete</strong>") {
			t.Fatalf("user mail missing verb: %s", m.HTMLBody)
		}
	}
}

func TestDataRequestService_RejectsUnknownType(t *testing.T) {
	db := newSvcDB(t)
	svc := &DataRequestService{DB: db, Pipeline: newSvcPipeline(db), Logger: zerolog.Nop()}

	_, out := svc.Submit(context.Background(), map[string]any{
		"email": "gdpr@example.com", "type": "PURGE",
	})
	if out.Status != pipeline.StatusRejectedValidation || out.Field != "type" {
		t.Fatalf("outcome = %+v, want type validation failure", out)
	}
	if n := countRows(t, db, &domain.DataRequest{}); n != 0 {
		t.Fatalf("requests = %d, want 0", n)
	}
}
