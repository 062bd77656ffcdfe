package dentalchart

import (
	_ "embed"
	"html/template"
	"time"

	"github.com/dentaldesk/dental/internal/domain/clinic"
	"github.com/dentaldesk/dental/internal/domain/treatment"
)

//go:embed print.html
var printHTML string

var printTemplate = template.Must(template.New("chart").Parse(printHTML))

type printTooth struct {
	Number int
	Symbol string
}

type printFlag struct {
	Label   string
	Checked bool
}

type printSection struct {
	Title string
	Flags []printFlag
}

type printAnswer struct {
	Question string
	Answer   string
}

type printData struct {
	Clinic     *clinic.Info
	Patient    *View
	Upper      []printTooth
	Lower      []printTooth
	Legend     []LegendEntry
	Sections   []printSection
	History    []printAnswer
	Treatments []*treatment.Treatment
	PrintedAt  string
}

func flagLabel(key string) string {
	b := []byte(key)
	for i := range b {
		if b[i] == '_' {
			b[i] = ' '
		}
	}
	if len(b) > 0 && b[0] >= 'a' && b[0] <= 'z' {
		b[0] -= 'a' - 'A'
	}
	return string(b)
}

func newPrintData(info *clinic.Info, v *View, items []*treatment.Treatment, now time.Time) printData {
	d := printData{Clinic: info, Patient: v, Legend: Legend, Treatments: items, PrintedAt: now.Format("2006-01-02 15:04")}

	// Universal numbering: 1-16 across the upper arch, 17-32 back along the lower.
	for n := 1; n <= 16; n++ {
		d.Upper = append(d.Upper, printTooth{Number: n, Symbol: v.Chart.Symbol(n)})
	}
	for n := 32; n >= 17; n-- {
		d.Lower = append(d.Lower, printTooth{Number: n, Symbol: v.Chart.Symbol(n)})
	}

	for _, sec := range []struct {
		title, name string
		keys        []string
	}{
		{"Medical Conditions", SectionMedicalConditions, MedicalConditionKeys},
		{"Periodontal & Occlusion", SectionConditions, ConditionKeys},
		{"Appliances", SectionApplications, ApplicationKeys},
		{"TMD", SectionTMD, TMDKeys},
	} {
		m, _ := v.Chart.section(sec.name)
		ps := printSection{Title: sec.title}
		for _, k := range sec.keys {
			ps.Flags = append(ps.Flags, printFlag{Label: flagLabel(k), Checked: m[k]})
		}
		d.Sections = append(d.Sections, ps)
	}

	for i, q := range HistoryQuestions {
		d.History = append(d.History, printAnswer{Question: q, Answer: v.Chart.DentalHistory[historyKey(i)]})
	}
	return d
}
