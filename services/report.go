package services

import (
	"bytes"
	"context"
	"fmt"
	"html/template"
	"time"

	"case_portal_go/models"

	"github.com/chromedp/cdproto/page"
	"github.com/chromedp/chromedp"
)

// ReportRenderer turns an HTML document into PDF bytes
type ReportRenderer interface {
	Render(ctx context.Context, html string) ([]byte, error)
}

// PDFOptions contains page layout for rendered reports
type PDFOptions struct {
	PageSize     string // letter, legal, A4
	Landscape    bool
	MarginInches float64
}

func DefaultPDFOptions() PDFOptions {
	return PDFOptions{PageSize: "A4", MarginInches: 0.75}
}

// ChromeRenderer prints HTML with headless Chrome
type ChromeRenderer struct {
	ExecPath string
	Options  PDFOptions
	Timeout  time.Duration
}

func NewChromeRenderer(execPath string) *ChromeRenderer {
	return &ChromeRenderer{ExecPath: execPath, Options: DefaultPDFOptions(), Timeout: 30 * time.Second}
}

func (r *ChromeRenderer) Render(ctx context.Context, htmlContent string) ([]byte, error) {
	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.NoSandbox,
		chromedp.DisableGPU,
	)
	// Custom path for headless-shell in Docker
	if r.ExecPath != "" {
		opts = append(opts, chromedp.ExecPath(r.ExecPath))
	}

	if r.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.Timeout)
		defer cancel()
	}

	allocCtx, allocCancel := chromedp.NewExecAllocator(ctx, opts...)
	defer allocCancel()
	browserCtx, cancel := chromedp.NewContext(allocCtx)
	defer cancel()

	width, height := paperSize(r.Options.PageSize)
	if r.Options.Landscape {
		width, height = height, width
	}
	margin := r.Options.MarginInches

	var pdf []byte
	err := chromedp.Run(browserCtx,
		chromedp.Navigate("about:blank"),
		chromedp.ActionFunc(func(ctx context.Context) error {
			frameTree, err := page.GetFrameTree().Do(ctx)
			if err != nil {
				return err
			}
			return page.SetDocumentContent(frameTree.Frame.ID, htmlContent).Do(ctx)
		}),
		chromedp.ActionFunc(func(ctx context.Context) error {
			buf, _, err := page.PrintToPDF().
				WithPaperWidth(width).
				WithPaperHeight(height).
				WithMarginTop(margin).
				WithMarginBottom(margin).
				WithMarginLeft(margin).
				WithMarginRight(margin).
				WithPrintBackground(true).
				Do(ctx)
			if err != nil {
				return err
			}
			pdf = buf
			return nil
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to generate PDF: %w", err)
	}
	return pdf, nil
}

// paperSize returns width and height in inches
func paperSize(name string) (float64, float64) {
	switch name {
	case "legal":
		return 8.5, 14.0
	case "letter":
		return 8.5, 11.0
	default:
		return 8.27, 11.69
	}
}

// CaseReport is the data behind a generated report
type CaseReport struct {
	Case        models.Case
	Creator     string
	Assignee    string
	History     []models.CaseHistory
	GeneratedAt time.Time
	GeneratedBy string
}

var caseReportTemplate = template.Must(template.New("case_report").Funcs(template.FuncMap{
	"fmtTime": func(t time.Time) string { return t.Format("2006-01-02 15:04") },
	"deref": func(s *string) string {
		if s == nil {
			return ""
		}
		return *s
	},
	"actor": func(h models.CaseHistory) string {
		if h.PerformedBy == nil {
			return "Anonymous"
		}
		return h.PerformedBy.Username
	},
}).Parse(`<!DOCTYPE html>
<html>
<head>
<meta charset="UTF-8">
<style>
body { font-family: Helvetica, Arial, sans-serif; font-size: 11pt; color: #111; }
h1 { font-size: 16pt; margin-bottom: 4pt; }
table { width: 100%; border-collapse: collapse; margin-top: 12pt; }
th, td { border: 1px solid #999; padding: 4pt 6pt; text-align: left; vertical-align: top; }
th { background: #eee; }
.meta { color: #555; font-size: 9pt; }
</style>
</head>
<body>
<h1>{{.Case.Title}}</h1>
<p class="meta">Generated {{fmtTime .GeneratedAt}} by {{.GeneratedBy}}</p>
<table>
<tr><th>Status</th><td>{{.Case.Status}}</td></tr>
<tr><th>Reported by</th><td>{{.Creator}}</td></tr>
<tr><th>Assigned to</th><td>{{.Assignee}}</td></tr>
<tr><th>Registered</th><td>{{fmtTime .Case.CreatedAt}}</td></tr>
<tr><th>Location</th><td>{{deref .Case.Location}}</td></tr>
<tr><th>Suspect</th><td>{{deref .Case.SuspectName}}</td></tr>
<tr><th>Witnesses</th><td>{{deref .Case.Witnesses}}</td></tr>
<tr><th>Description</th><td>{{.Case.Description}}</td></tr>
<tr><th>Progress notes</th><td>{{deref .Case.ProgressNotes}}</td></tr>
</table>
<h2>History</h2>
<table>
<tr><th>When</th><th>Action</th><th>By</th></tr>
{{range .History}}<tr><td>{{fmtTime .Timestamp}}</td><td>{{.Action}}</td><td>{{actor .}}</td></tr>
{{end}}</table>
</body>
</html>`))

// BuildCaseReportHTML renders the report document. All fields are escaped.
func BuildCaseReportHTML(r CaseReport) (string, error) {
	var buf bytes.Buffer
	if err := caseReportTemplate.Execute(&buf, r); err != nil {
		return "", fmt.Errorf("failed to render case report: %w", err)
	}
	return buf.String(), nil
}
