package reporting

import (
	"fmt"
	"strconv"
	"strings"
	"text/template"
	"time"

	"github.com/c21-japan/homemart-sub002/internal/agreement"
	"github.com/c21-japan/homemart-sub002/internal/deadline"
)

const subjectTemplate = `【販売状況報告】{{.LeadName}}様邸{{if .Building}}（{{.Building}}）{{end}}／{{.Label}}・第{{.Sequence}}回`

const bodyTemplate = `{{.LeadName}}様

{{.OfficeName}}です。
下記のとおり販売活動の状況をご報告いたします。

■ 契約内容
・媒介契約：{{.Label}}媒介契約（{{.SignedAt}}締結）
{{- if .Building}}
・物件：{{.Building}}
{{- end}}
{{- if .PropertyURL}}
・物件ページ：{{.PropertyURL}}
{{- end}}

■ 概況
・広告掲載：SUUMO／HOME'S／レインズ
・表示価格：{{.Price}}
・直近の実績：閲覧 {{.Metrics.PageViews}}／問い合わせ {{.Metrics.Inquiries}}／内見 {{.Metrics.Viewings}} 件

■ 反響と所見
{{or .Metrics.Feedback "特になし"}}

■ 競合状況
・同エリアの競合：{{.Metrics.Competitors}}件
・価格帯：{{or .Metrics.PriceRange "要調査"}}

■ 推奨アクション（次回まで）
{{- range .Actions}}
- {{.}}
{{- end}}

■ 次回報告予定
- {{.NextReport}}（自動送付予定）

※{{.Frequency}}の頻度で状況報告を継続します。
ご不明点があれば、本メールへご返信ください。

{{.OfficeName}}
{{- if .Assignee}}
担当：{{.Assignee}}
{{- end}}

---
※本メールは法令（宅建業法34条の2第9項）に基づく定期報告です。
※専属専任・専任契約の場合は、法定頻度での報告を継続いたします。`

var (
	subjectTmpl = template.Must(template.New("subject").Parse(subjectTemplate))
	bodyTmpl    = template.Must(template.New("body").Parse(bodyTemplate))
)

var defaultActions = []string{"価格の見直し検討", "広告の最適化"}

// reportData is the template context of one report
type reportData struct {
	LeadName    string
	OfficeName  string
	Assignee    string
	Label       string
	Frequency   string
	SignedAt    string
	Building    string
	Price       string
	PropertyURL string
	Sequence    int
	NextReport  string
	Metrics     ActivityMetrics
	Actions     []string
}

// Report is a rendered seller report
type Report struct {
	Subject string
	Body    string
}

// SequenceNumber numbers a report by whole weeks elapsed since the last send,
// starting at 1. Never-sent agreements get 1.
func SequenceNumber(lastSent *time.Time, now time.Time) int {
	if lastSent == nil {
		return 1
	}
	elapsed := now.Sub(*lastSent)
	if elapsed < 0 {
		return 1
	}
	return int(elapsed/(7*24*time.Hour)) + 1
}

// FormatYen renders a listed price as 35,000,000円. A zero price is
// "要相談" (to be discussed).
func FormatYen(n int64) string {
	if n <= 0 {
		return "要相談"
	}
	digits := strconv.FormatInt(n, 10)
	var b strings.Builder
	for i, c := range digits {
		if i > 0 && (len(digits)-i)%3 == 0 {
			b.WriteByte(',')
		}
		b.WriteRune(c)
	}
	b.WriteString("円")
	return b.String()
}

// Render builds the subject and body. The output depends only on its inputs.
func Render(a agreement.DueAgreement, m ActivityMetrics, sequence int, next *time.Time, office, siteURL string) (Report, error) {
	data := reportData{
		LeadName:   a.Lead.FullName(),
		OfficeName: office,
		Assignee:   a.Lead.AssignedTo,
		Label:      a.ContractType.Label(),
		Frequency:  a.ContractType.FrequencyLabel(),
		SignedAt:   deadline.FormatJP(a.SignedAt),
		Sequence:   sequence,
		Building:   strings.TrimSpace(a.Lead.Property.BuildingName + a.Lead.Property.RoomNo),
		Price:      FormatYen(a.Lead.Property.ExpectedPrice),
		NextReport: "未定",
		Metrics:    m,
		Actions:    defaultActions,
	}
	if next != nil {
		data.NextReport = deadline.FormatJP(*next)
	}
	if a.PropertyID != nil && siteURL != "" {
		data.PropertyURL = fmt.Sprintf("%s/properties/%s", siteURL, a.PropertyID)
	}
	if len(m.RecommendedActions) > 0 {
		data.Actions = m.RecommendedActions
	}

	var subject, body strings.Builder
	if err := subjectTmpl.Execute(&subject, data); err != nil {
		return Report{}, fmt.Errorf("render subject: %w", err)
	}
	if err := bodyTmpl.Execute(&body, data); err != nil {
		return Report{}, fmt.Errorf("render body: %w", err)
	}

	return Report{Subject: subject.String(), Body: body.String()}, nil
}
