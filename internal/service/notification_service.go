package service

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"bankcore/internal/domain"
)

type NotificationType string

const (
	NotificationEmail NotificationType = "email"
	NotificationSMS   NotificationType = "sms"
)

// NotificationService fans committed-mutation notices out to delivery
// backends. Delivery is best-effort and asynchronous; the ledger never
// waits on it.
type NotificationService struct {
	emailService EmailService
	smsService   SMSService
	messageQueue chan NotificationMessage
	workers      int
	shutdownChan chan struct{}
	wg           sync.WaitGroup
	logger       *slog.Logger
}

type NotificationMessage struct {
	Type      NotificationType
	Recipient string
	Subject   string
	Message   string
	CreatedAt time.Time
}

type EmailService interface {
	SendEmail(to, subject, body string) error
}

type SMSService interface {
	SendSMS(to, message string) error
}

func NewNotificationService(
	emailService EmailService,
	smsService SMSService,
	workers int,
	logger *slog.Logger,
) *NotificationService {
	if logger == nil {
		logger = slog.Default()
	}

	service := &NotificationService{
		emailService: emailService,
		smsService:   smsService,
		messageQueue: make(chan NotificationMessage, 1000),
		workers:      workers,
		shutdownChan: make(chan struct{}),
		logger:       logger,
	}

	service.startWorkers()

	return service
}

func (s *NotificationService) SendTransactionNotification(
	ctx context.Context,
	txn *domain.Transaction,
	recipient string,
	notificationType NotificationType,
) error {
	var subject, message string

	switch txn.Kind {
	case domain.KindDeposit:
		subject = "Deposit successful"
		message = fmt.Sprintf("A deposit of %s has been credited to your account.", txn.Amount.StringFixed(2))
	case domain.KindWithdraw:
		subject = "Withdrawal successful"
		message = fmt.Sprintf("A withdrawal of %s has been debited from your account.", txn.Amount.StringFixed(2))
	case domain.KindTransfer:
		subject = "Transfer successful"
		message = fmt.Sprintf("A transfer of %s has been booked.", txn.Amount.StringFixed(2))
	default:
		subject = "Account update"
		message = fmt.Sprintf("A transaction of %s has been recorded.", txn.Amount.StringFixed(2))
	}

	notification := NotificationMessage{
		Type:      notificationType,
		Recipient: recipient,
		Subject:   subject,
		Message:   message,
		CreatedAt: time.Now(),
	}

	select {
	case s.messageQueue <- notification:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	default:
		return fmt.Errorf("notification queue is full")
	}
}

func (s *NotificationService) startWorkers() {
	for i := 0; i < s.workers; i++ {
		s.wg.Add(1)
		go s.worker(i)
	}
}

func (s *NotificationService) worker(id int) {
	defer s.wg.Done()

	for {
		select {
		case msg, ok := <-s.messageQueue:
			if !ok {
				return
			}
			s.deliver(msg)
		case <-s.shutdownChan:
			return
		}
	}
}

func (s *NotificationService) deliver(msg NotificationMessage) {
	var err error
	switch msg.Type {
	case NotificationEmail:
		err = s.emailService.SendEmail(msg.Recipient, msg.Subject, msg.Message)
	case NotificationSMS:
		err = s.smsService.SendSMS(msg.Recipient, msg.Message)
	default:
		err = fmt.Errorf("unknown notification type: %s", msg.Type)
	}

	if err != nil {
		s.logger.Error("Notification delivery failed",
			slog.String("type", string(msg.Type)),
			slog.String("recipient", msg.Recipient),
			slog.String("error", err.Error()))
		return
	}

	s.logger.Info("Notification delivered",
		slog.String("type", string(msg.Type)),
		slog.String("recipient", msg.Recipient),
		slog.String("subject", msg.Subject))
}

func (s *NotificationService) Shutdown(ctx context.Context) error {
	close(s.shutdownChan)

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		s.logger.Info("Notification service shutdown complete")
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

type MockEmailService struct {
	mu         sync.Mutex
	SentEmails []struct {
		To      string
		Subject string
		Body    string
	}
}

func (m *MockEmailService) SendEmail(to, subject, body string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.SentEmails = append(m.SentEmails, struct {
		To      string
		Subject string
		Body    string
	}{to, subject, body})
	return nil
}

type MockSMSService struct {
	mu      sync.Mutex
	SentSMS []struct {
		To      string
		Message string
	}
}

func (m *MockSMSService) SendSMS(to, message string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.SentSMS = append(m.SentSMS, struct {
		To      string
		Message string
	}{to, message})
	return nil
}
