package services

import (
	"context"
	"fmt"
	"net/smtp"
	"os"
	"strings"

	"github.com/wajihaissa/fahamni/internal/models"
)

// EmailService sends transactional mails over SMTP
type EmailService struct {
	host     string
	port     string
	user     string
	password string
	from     string
	fromName string
}

func NewEmailService() *EmailService {
	fromName := os.Getenv("EMAIL_FROM_NAME")
	if fromName == "" {
		fromName = "Fahamni"
	}
	return &EmailService{
		host:     os.Getenv("SMTP_HOST"),
		port:     os.Getenv("SMTP_PORT"),
		user:     os.Getenv("SMTP_USER"),
		password: os.Getenv("SMTP_PASS"),
		from:     os.Getenv("EMAIL_FROM"),
		fromName: fromName,
	}
}

// SendEmail sends a plain-text email to the given recipients
func (s *EmailService) SendEmail(to []string, subject, body string) error {
	if s.host == "" || s.port == "" || s.user == "" || s.password == "" {
		return fmt.Errorf("SMTP credentials not fully configured")
	}

	auth := smtp.PlainAuth("", s.user, s.password, s.host)

	message := []byte(fmt.Sprintf("To: %s\r\n"+
		"From: %s <%s>\r\n"+
		"Subject: %s\r\n"+
		"\r\n"+
		"%s\r\n", to[0], s.fromName, s.from, subject, body))

	addr := fmt.Sprintf("%s:%s", s.host, s.port)

	if err := smtp.SendMail(addr, auth, s.from, to, message); err != nil {
		return fmt.Errorf("failed to send email: %w", err)
	}

	return nil
}

// SendReservationCreated confirms to the student that the booking request
// was registered and is waiting for the tutor.
func (s *EmailService) SendReservationCreated(ctx context.Context, r *models.Reservation) error {
	return s.sendReservationEmail(r, "Reservation en attente de validation | Fahamni",
		"votre reservation a bien ete enregistree et attend la validation du tuteur.")
}

// SendReservationAccepted tells the student the tutor accepted the booking.
func (s *EmailService) SendReservationAccepted(ctx context.Context, r *models.Reservation) error {
	return s.sendReservationEmail(r, "Reservation confirmee | Fahamni",
		"votre reservation a ete confirmee par le tuteur.")
}

// SendReservationReminder is the 24h pre-seance reminder.
func (s *EmailService) SendReservationReminder(ctx context.Context, r *models.Reservation) error {
	return s.sendReservationEmail(r, "Rappel de seance dans 24h | Fahamni",
		"votre seance commence dans moins de 24 heures.")
}

func (s *EmailService) sendReservationEmail(r *models.Reservation, subject, intro string) error {
	studentEmail := strings.TrimSpace(r.Participant.Email)
	if studentEmail == "" {
		return fmt.Errorf("reservation %d has no participant email", r.ID)
	}
	if r.Seance.StartAt.IsZero() {
		return fmt.Errorf("reservation %d has no seance start time", r.ID)
	}

	studentName := r.Participant.FullName
	if studentName == "" {
		studentName = "Etudiant"
	}
	tuteurName := r.Seance.Tuteur.FullName
	if tuteurName == "" {
		tuteurName = "votre tuteur"
	}
	matiere := r.Seance.Matiere
	if matiere == "" {
		matiere = "Seance"
	}

	body := fmt.Sprintf("Bonjour %s,\n\n"+
		"%s\n\n"+
		"Matiere : %s\n"+
		"Tuteur : %s\n"+
		"Date : %s\n"+
		"Heure : %s\n\n"+
		"A bientot sur Fahamni.",
		studentName,
		intro,
		matiere,
		tuteurName,
		r.Seance.StartAt.Format("02/01/2006"),
		r.Seance.StartAt.Format("15:04"),
	)

	return s.SendEmail([]string{studentEmail}, subject, body)
}
