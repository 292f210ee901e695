package notify

import (
	"fmt"
	"time"
)

// MessageData carries what the booking templates print.
type MessageData struct {
	PatientName      string
	ProfessionalName string
	Date             time.Time
	Time             string // HH:MM
	ClinicName       string
	ClinicAddress    string
}

func (d MessageData) clinic() string {
	if d.ClinicName == "" {
		return "A Clínica"
	}
	return d.ClinicName
}

func Confirmation(d MessageData) string {
	msg := fmt.Sprintf(
		"Olá, *%s*! 👋\n\nSua consulta na *%s* está confirmada!\n\n📅 Data: *%s*\n⏰ Horário: *%s*\n👨‍⚕️ Profissional: %s\n",
		d.PatientName, d.clinic(), d.Date.Format("02/01/2006"), d.Time, d.ProfessionalName,
	)
	if d.ClinicAddress != "" {
		msg += fmt.Sprintf("\n📍 Endereço: %s\n", d.ClinicAddress)
	}
	return msg + "\nPor favor, responda SIM para confirmar."
}

func Reminder(d MessageData) string {
	return fmt.Sprintf(
		"Olá, *%s*! Passando para lembrar da sua consulta amanhã (*%s*) às *%s* com %s na *%s*.\n\nCaso não possa comparecer, avise-nos com antecedência.",
		d.PatientName, d.Date.Format("02/01/2006"), d.Time, d.ProfessionalName, d.clinic(),
	)
}

func Cancellation(d MessageData) string {
	return fmt.Sprintf(
		"Olá, *%s*. Sua consulta do dia *%s* às *%s* com %s foi cancelada.\n\nEntre em contato com a *%s* para reagendar.",
		d.PatientName, d.Date.Format("02/01/2006"), d.Time, d.ProfessionalName, d.clinic(),
	)
}
