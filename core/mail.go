package core

import (
	"bytes"
	"encoding/base64"
	htmltmpl "html/template"
	"io"
	"io/fs"
	"net/http"
	"net/mail"
	"path"
	"strings"
	"sync"
	texttmpl "text/template"

	"github.com/pkg/errors"
)

const emailTemplatesDir = "templates/email"

// emailTemplate holds the text and html variants of a named email template. Either may be nil.
type emailTemplate struct {
	text *texttmpl.Template
	html *htmltmpl.Template
}

// emailTemplates is the set of parsed templates, swapped as a whole by ParseEmailTemplates.
var emailTemplates struct {
	sync.RWMutex
	byName          map[string]emailTemplate
	frontendBaseURL string
	appName         string
}

type (
	Attachment struct {
		Content     *bytes.Buffer // base64 encoded
		ContentType string
		Filename    string
	}

	EmailMessage struct {
		To          []mail.Address
		Cc          []mail.Address
		Bcc         []mail.Address
		Subject     string
		BodyStr     string // plain text content, used instead of the text template
		Attachments []Attachment

		TemplateName string // file name without extension, under templates/email
		TemplateData interface{}
		TextContent  string
		HTMLContent  string
	}

	// TemplateContext is the value templates are executed with.
	TemplateContext struct {
		AppName         string
		FrontendBaseURL string
		Data            interface{}
	}

	// EmailService is any service that can send emails
	EmailService interface {
		// SendMessages sends messages concurrently
		SendMessages(messages ...*EmailMessage)
	}
)

// Render executes the message templates into TextContent and HTMLContent.
// Unknown templates render nothing.
func (m *EmailMessage) Render() error {
	if m.BodyStr != "" {
		m.TextContent = m.BodyStr
	}
	if m.TemplateName == "" {
		return nil
	}

	emailTemplates.RLock()
	tmpl, ok := emailTemplates.byName[m.TemplateName]
	tctx := TemplateContext{
		AppName:         emailTemplates.appName,
		FrontendBaseURL: emailTemplates.frontendBaseURL,
		Data:            m.TemplateData,
	}
	emailTemplates.RUnlock()
	if !ok {
		return nil
	}

	var buf bytes.Buffer
	if tmpl.text != nil && m.BodyStr == "" {
		if err := tmpl.text.Execute(&buf, tctx); err != nil {
			return errors.Wrapf(err, "rendering %s.txt", m.TemplateName)
		}
		m.TextContent = buf.String()
	}
	if tmpl.html != nil {
		buf.Reset()
		if err := tmpl.html.Execute(&buf, tctx); err != nil {
			return errors.Wrapf(err, "rendering %s.gohtml", m.TemplateName)
		}
		m.HTMLContent = buf.String()
	}
	return nil
}

// Attach reads r, base64 encodes it and adds it to the message attachments.
// The content type is sniffed when ct is not provided.
func (m *EmailMessage) Attach(r io.Reader, filename string, ct ...string) error {
	raw, err := io.ReadAll(r)
	if err != nil {
		return errors.Wrap(err, "reading attachment")
	}

	contentType := http.DetectContentType(raw)
	if len(ct) > 0 && ct[0] != "" {
		contentType = ct[0]
	}
	encoded := make([]byte, base64.StdEncoding.EncodedLen(len(raw)))
	base64.StdEncoding.Encode(encoded, raw)

	m.Attachments = append(m.Attachments, Attachment{
		Content:     bytes.NewBuffer(encoded),
		ContentType: contentType,
		Filename:    filename,
	})
	return nil
}

func (m *EmailMessage) HasRecipients() bool  { return len(m.To) > 0 }
func (m *EmailMessage) HasContent() bool     { return m.TextContent != "" || m.HTMLContent != "" }
func (m *EmailMessage) HasAttachments() bool { return len(m.Attachments) > 0 }

// ParseEmailTemplates parses the templates/email directory of fsys.
// Every <name>.txt is parsed with _base.txt, and every <name>.gohtml with _base.gohtml.
// Templates failing to parse are logged and skipped.
func ParseEmailTemplates(fsys fs.FS, conf *Config, logger Logger) {
	strict := conf.Debug || conf.TestMode
	byName := make(map[string]emailTemplate)

	entries, err := fs.ReadDir(fsys, emailTemplatesDir)
	if err != nil {
		logger.Error("reading email templates", err)
	}
	for _, entry := range entries {
		fname := entry.Name()
		if entry.IsDir() || strings.HasPrefix(fname, "_") {
			continue
		}
		fp := path.Join(emailTemplatesDir, fname)
		ext := path.Ext(fname)
		name := strings.TrimSuffix(fname, ext)
		tmpl := byName[name]

		switch ext {
		case ".txt":
			t, err := texttmpl.ParseFS(fsys, path.Join(emailTemplatesDir, "_base.txt"), fp)
			if err != nil {
				logger.Error("parsing email template "+fname, err)
				continue
			}
			if strict {
				t = t.Option("missingkey=error")
			}
			tmpl.text = t
		case ".gohtml":
			t, err := htmltmpl.ParseFS(fsys, path.Join(emailTemplatesDir, "_base.gohtml"), fp)
			if err != nil {
				logger.Error("parsing email template "+fname, err)
				continue
			}
			if strict {
				t = t.Option("missingkey=error")
			}
			tmpl.html = t
		default:
			continue
		}
		byName[name] = tmpl
	}

	emailTemplates.Lock()
	emailTemplates.byName = byName
	emailTemplates.frontendBaseURL = conf.FrontendBaseURL
	emailTemplates.appName = conf.AppName
	emailTemplates.Unlock()
}
