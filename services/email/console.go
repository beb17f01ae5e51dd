package emailsvc

import (
	"bytes"
	"io"
	"log"
	"mime/multipart"
	"net/mail"
	"net/textproto"
	"os"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/trezcool/shule/core"
)

var (
	// SentMessages records every message delivered by a console service.
	SentMessages = make([]core.EmailMessage, 0)
	sentMu       sync.Mutex
)

func recordSent(msg core.EmailMessage) {
	sentMu.Lock()
	SentMessages = append(SentMessages, msg)
	sentMu.Unlock()
}

// ResetSentMessages empties SentMessages.
func ResetSentMessages() {
	sentMu.Lock()
	SentMessages = make([]core.EmailMessage, 0)
	sentMu.Unlock()
}

type consoleService struct {
	from       mail.Address
	subjPrefix string
	logger     core.Logger
	out        io.Writer // nil: silent
	async      bool
}

var _ core.EmailService = (*consoleService)(nil)

// NewConsoleService returns an EmailService printing MIME messages to stdout instead of sending them.
func NewConsoleService(conf *core.Config, logger core.Logger) core.EmailService {
	return &consoleService{
		from:       conf.DefaultFromEmail(),
		subjPrefix: "[" + conf.AppName + "] ",
		logger:     logger,
		out:        os.Stdout,
		async:      true,
	}
}

// NewConsoleServiceMock returns a silent console service delivering messages synchronously.
func NewConsoleServiceMock(conf *core.Config) core.EmailService {
	return &consoleService{
		from:       conf.DefaultFromEmail(),
		subjPrefix: "[" + conf.AppName + "] ",
	}
}

func (svc *consoleService) SendMessages(messages ...*core.EmailMessage) {
	for _, msg := range messages {
		if svc.async {
			go svc.deliver(msg)
		} else {
			svc.deliver(msg)
		}
	}
}

func (svc *consoleService) deliver(msg *core.EmailMessage) {
	if err := msg.Render(); err != nil {
		if svc.logger != nil {
			svc.logger.Error("rendering email", err)
		}
		return
	}
	if !msg.HasRecipients() || !(msg.HasContent() || msg.HasAttachments()) {
		return
	}
	if svc.out != nil {
		var buf bytes.Buffer
		svc.writeMIME(&buf, *msg)
		log.New(svc.out, "", 0).Print(buf.String())
	}
	recordSent(*msg)
}

func (svc *consoleService) writeMIME(w *bytes.Buffer, msg core.EmailMessage) {
	parts := multipart.NewWriter(w)

	hdr := textproto.MIMEHeader{}
	hdr.Set("From", svc.from.String())
	hdr.Set("To", addressList(msg.To))
	if len(msg.Cc) > 0 {
		hdr.Set("Cc", addressList(msg.Cc))
	}
	if len(msg.Bcc) > 0 {
		hdr.Set("Bcc", addressList(msg.Bcc))
	}
	hdr.Set("Subject", svc.subjPrefix+msg.Subject)
	hdr.Set("Date", time.Now().Format(time.RFC1123Z))
	hdr.Set("MIME-Version", "1.0")
	hdr.Set("Content-Type", "multipart/mixed; boundary="+parts.Boundary())

	keys := make([]string, 0, len(hdr))
	for k := range hdr {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		w.WriteString(k + ": " + hdr.Get(k) + "\r\n")
	}
	w.WriteString("\r\n")

	writePart := func(h textproto.MIMEHeader, content string) {
		if pw, err := parts.CreatePart(h); err == nil {
			_, _ = io.WriteString(pw, content+"\r\n")
		}
	}
	writePart(textproto.MIMEHeader{"Content-Type": {"text/plain; charset=utf-8"}}, msg.TextContent)
	if msg.HTMLContent != "" {
		writePart(textproto.MIMEHeader{"Content-Type": {"text/html; charset=utf-8"}}, msg.HTMLContent)
	}
	for _, at := range msg.Attachments {
		writePart(textproto.MIMEHeader{
			"Content-Type":              {at.ContentType},
			"Content-Transfer-Encoding": {"base64"},
			"Content-Disposition":       {`attachment; filename="` + at.Filename + `"`},
		}, at.Content.String())
	}
	_ = parts.Close()
}

func addressList(addrs []mail.Address) string {
	out := make([]string, len(addrs))
	for i := range addrs {
		out[i] = addrs[i].String()
	}
	return strings.Join(out, ", ")
}
