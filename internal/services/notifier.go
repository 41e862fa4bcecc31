package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"text/template"

	"naftapp/internal/models"

	"gorm.io/gorm"
)

// Notification is one message to one recipient.
type Notification struct {
	Kind      models.NotificationKind
	Recipient Recipient
	Context   map[string]string
}

type Recipient struct {
	UserID uint
	Email  string
	Name   string
}

// Notifier delivers a notification over one channel.
type Notifier interface {
	Notify(ctx context.Context, n Notification) error
}

// 通知模板
var notificationTemplates = map[models.NotificationKind]struct {
	subject string
	body    *template.Template
}{
	models.NotificationStationPending: {
		subject: "Nueva estación pendiente de revisión",
		body:    mustTemplate("La estación \"{{.station_name}}\" ({{.station_address}}) espera moderación."),
	},
	models.NotificationStationApproved: {
		subject: "Tu estación fue aprobada",
		body:    mustTemplate("Hola {{.name}}, la estación \"{{.station_name}}\" fue aprobada y ya es visible en el mapa."),
	},
	models.NotificationStationRejected: {
		subject: "Tu estación fue rechazada",
		body:    mustTemplate("Hola {{.name}}, la estación \"{{.station_name}}\" fue rechazada.{{if .reason}} Motivo: {{.reason}}.{{end}} Podés corregirla y volver a enviarla."),
	},
	models.NotificationStationResubmitted: {
		subject: "Tu estación volvió a revisión",
		body:    mustTemplate("Hola {{.name}}, recibimos de nuevo la estación \"{{.station_name}}\".{{if .previous_reason}} Motivo del rechazo anterior: {{.previous_reason}}.{{end}}"),
	},
	models.NotificationReportThanks: {
		subject: "Gracias por tu reporte",
		body:    mustTemplate("Hola {{.name}}, gracias por reportar un comentario. Lo vamos a revisar."),
	},
	models.NotificationCommentReported: {
		subject: "Comentario reportado",
		body:    mustTemplate("El comentario #{{.comment_id}} de la estación #{{.station_id}} fue reportado: {{.reasons}}."),
	},
}

func mustTemplate(body string) *template.Template {
	return template.Must(template.New("").Option("missingkey=zero").Parse(body))
}

// Render returns the subject and body for a notification.
func Render(n Notification) (string, string, error) {
	tmpl, ok := notificationTemplates[n.Kind]
	if !ok {
		return "", "", fmt.Errorf("no template for notification kind %q", n.Kind)
	}
	data := make(map[string]string, len(n.Context)+1)
	for k, v := range n.Context {
		data[k] = v
	}
	if _, ok := data["name"]; !ok {
		data["name"] = n.Recipient.Name
	}
	var body strings.Builder
	if err := tmpl.body.Execute(&body, data); err != nil {
		return "", "", fmt.Errorf("render notification %s: %w", n.Kind, err)
	}
	return tmpl.subject, body.String(), nil
}

// InboxNotifier stores notifications as in-app inbox rows.
type InboxNotifier struct {
	db *gorm.DB
}

func NewInboxNotifier(db *gorm.DB) *InboxNotifier {
	return &InboxNotifier{db: db}
}

func (n *InboxNotifier) Notify(ctx context.Context, note Notification) error {
	if note.Recipient.UserID == 0 {
		return nil
	}
	_, body, err := Render(note)
	if err != nil {
		return err
	}
	row := models.Notification{
		UserID:  note.Recipient.UserID,
		Kind:    note.Kind,
		Message: body,
	}
	return n.db.WithContext(ctx).Create(&row).Error
}

// MultiNotifier fans out to every channel; one failing channel does not stop the rest.
type MultiNotifier []Notifier

func (m MultiNotifier) Notify(ctx context.Context, n Notification) error {
	var errs []error
	for _, notifier := range m {
		if err := notifier.Notify(ctx, n); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
