package worker

import (
	"bytes"
	"fmt"
	"html/template"
	"strings"
	"time"
)

// resumeTemplateString 是 PDF 渲染的 HTML 模板。
// 版式参数（字体、标题色、主题色、留白）来自模板目录，
// 简历自身的 accentColor 覆盖模板默认主题色。
const resumeTemplateString = `
<!DOCTYPE html>
<html>
<head>
<meta charset="UTF-8">
<style>
  @page { size: A4; margin: 0; }
  body {
    margin: 0;
    padding: {{.Padding}}px;
    font-family: {{.Style.FontFamily | safeCSS}};
    font-size: 10pt;
    color: #222;
    line-height: {{.LineHeight}};
  }
  h1 { color: {{.Style.HeadingColor | safeCSS}}; font-size: 22pt; margin: 0; }
  h2 {
    color: {{.Style.HeadingColor | safeCSS}};
    font-size: 12pt;
    border-bottom: 2px solid {{.Accent | safeCSS}};
    padding-bottom: 2px;
    margin: {{.SectionGap}}px 0 6px;
  }
  .job-title { color: {{.Accent | safeCSS}}; font-size: 12pt; margin: 2px 0 0; }
  .contact { color: #555; font-size: 9pt; margin-top: 4px; }
  .photo { width: 96px; height: 96px; object-fit: cover; }
  .photo-square { border-radius: 0; }
  .photo-circle { border-radius: 50%; }
  .photo-rounded { border-radius: 10%; }
  .header { display: flex; gap: 16px; align-items: center; }
  .entry { margin-bottom: 8px; }
  .entry-head { display: flex; justify-content: space-between; }
  .entry-title { font-weight: bold; }
  .entry-dates { color: #777; font-size: 9pt; }
  .entry-sub { color: #555; font-style: italic; }
  .skills span {
    display: inline-block;
    border: 1px solid {{.Accent | safeCSS}};
    border-radius: 3px;
    padding: 1px 6px;
    margin: 0 4px 4px 0;
    font-size: 9pt;
  }
  {{if .TwoColumn}}
  .columns { display: flex; gap: 24px; }
  .main { flex: 2; }
  .side { flex: 1; }
  {{end}}
</style>
</head>
<body>
  <div class="header">
    {{if .Resume.PhotoURL}}<img class="photo photo-{{.PhotoClass}}" src="{{.Resume.PhotoURL}}" />{{end}}
    <div>
      <h1>{{.Resume.FirstName}} {{.Resume.LastName}}</h1>
      {{if .Resume.JobTitle}}<p class="job-title">{{.Resume.JobTitle}}</p>{{end}}
      <p class="contact">{{.ContactLine}}</p>
    </div>
  </div>

  {{if .TwoColumn}}<div class="columns"><div class="main">{{end}}

  {{if .Resume.Summary}}
  <h2>Summary</h2>
  <p>{{.Resume.Summary}}</p>
  {{end}}

  {{if .Resume.WorkExperiences}}
  <h2>Work Experience</h2>
  {{range .Resume.WorkExperiences}}
  <div class="entry">
    <div class="entry-head">
      <span class="entry-title">{{.Position}}</span>
      <span class="entry-dates">{{fmtRange .StartDate .EndDate}}</span>
    </div>
    {{if .Company}}<div class="entry-sub">{{.Company}}</div>{{end}}
    {{if .Description}}<div>{{.Description}}</div>{{end}}
  </div>
  {{end}}
  {{end}}

  {{if .TwoColumn}}</div><div class="side">{{end}}

  {{if .Resume.Educations}}
  <h2>Education</h2>
  {{range .Resume.Educations}}
  <div class="entry">
    <div class="entry-head">
      <span class="entry-title">{{.Degree}}</span>
      <span class="entry-dates">{{fmtRange .StartDate .EndDate}}</span>
    </div>
    {{if .School}}<div class="entry-sub">{{.School}}</div>{{end}}
  </div>
  {{end}}
  {{end}}

  {{if .Resume.Skills}}
  <h2>Skills</h2>
  <div class="skills">{{range .Resume.Skills}}<span>{{.}}</span>{{end}}</div>
  {{end}}

  {{if .TwoColumn}}</div></div>{{end}}
</body>
</html>
`

var resumeTemplate = template.Must(template.New("resume").Funcs(template.FuncMap{
	"safeCSS":  func(s string) template.CSS { return template.CSS(s) },
	"fmtRange": fmtRange,
}).Parse(resumeTemplateString))

func fmtRange(start, end string) string {
	from := fmtMonth(start)
	to := fmtMonth(end)
	if from == "" && to == "" {
		return ""
	}
	if to == "" {
		to = "Present"
	}
	if from == "" {
		return to
	}
	return from + " – " + to
}

func fmtMonth(date string) string {
	if date == "" {
		return ""
	}
	t, err := time.Parse("2006-01-02", date)
	if err != nil {
		return date
	}
	return t.Format("Jan 2006")
}

type resumeTemplateData struct {
	Resume      printResume
	Style       printStyle
	Accent      string
	TwoColumn   bool
	PhotoClass  string
	ContactLine string
	Padding     int
	SectionGap  int
	LineHeight  string
}

// renderResumeHTML 将打印数据套入模板生成最终 HTML。
func renderResumeHTML(payload printPayload) (string, error) {
	accent := payload.Template.Style.AccentColor
	if payload.Resume.AccentColor != "" {
		accent = payload.Resume.AccentColor
	}

	photoClass := payload.Resume.BorderStyle
	switch photoClass {
	case "square", "circle", "rounded":
	default:
		photoClass = "square"
	}

	var contact []string
	if loc := joinNonEmpty(", ", payload.Resume.City, payload.Resume.Country); loc != "" {
		contact = append(contact, loc)
	}
	if payload.Resume.Phone != "" {
		contact = append(contact, payload.Resume.Phone)
	}
	if payload.Resume.Email != "" {
		contact = append(contact, payload.Resume.Email)
	}

	data := resumeTemplateData{
		Resume:      payload.Resume,
		Style:       payload.Template.Style,
		Accent:      accent,
		TwoColumn:   payload.Template.Layout == "two-column",
		PhotoClass:  photoClass,
		ContactLine: strings.Join(contact, " · "),
	}

	switch payload.Template.Style.Spacing {
	case "compact":
		data.Padding, data.SectionGap, data.LineHeight = 28, 10, "1.3"
	case "relaxed":
		data.Padding, data.SectionGap, data.LineHeight = 48, 18, "1.6"
	default:
		data.Padding, data.SectionGap, data.LineHeight = 36, 14, "1.45"
	}

	var buf bytes.Buffer
	if err := resumeTemplate.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("render resume template: %w", err)
	}
	return buf.String(), nil
}

func joinNonEmpty(sep string, parts ...string) string {
	kept := parts[:0:0]
	for _, p := range parts {
		if strings.TrimSpace(p) != "" {
			kept = append(kept, p)
		}
	}
	return strings.Join(kept, sep)
}
