package dentalchart

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/dentaldesk/dental/pkg/validation"
)

const (
	MinTooth = 1
	MaxTooth = 32
)

var errToothRange = validation.Errors{"tooth": "tooth must be between 1 and 32"}

type LegendEntry struct {
	Symbol string `json:"symbol"`
	Label  string `json:"label"`
}

// Legend lists the symbols a tooth may carry.
var Legend = []LegendEntry{
	{"A", "Amalgam Filling"},
	{"B", "Abutment"},
	{"C", "Composite Filling"},
	{"D", "Decayed"},
	{"F", "Filled"},
	{"G", "Glass Ionomer Filling"},
	{"I", "Indicated for Extraction"},
	{"J", "Jacket Crown"},
	{"L", "Implant"},
	{"M", "Missing"},
	{"P", "Pontic"},
	{"R", "Root Fragment"},
	{"S", "Sealant"},
	{"T", "Temporary Filling"},
	{"U", "Unerupted"},
	{"X", "Extracted"},
}

var legendLabels = func() map[string]string {
	m := make(map[string]string, len(Legend))
	for _, e := range Legend {
		m[e.Symbol] = e.Label
	}
	return m
}()

func IsValidSymbol(s string) bool {
	_, ok := legendLabels[s]
	return ok
}

// Flag sections and their fixed keys, in form order.
const (
	SectionMedicalConditions = "medicalConditions"
	SectionConditions        = "conditions"
	SectionApplications      = "applications"
	SectionTMD               = "tmd"
)

var MedicalConditionKeys = []string{
	"high_blood_pressure", "low_blood_pressure", "heart_disease", "heart_murmur",
	"diabetes", "asthma", "allergies", "bleeding_problems", "hepatitis",
	"kidney_disease", "epilepsy", "tuberculosis", "cancer", "thyroid_problem",
	"stroke", "pregnant",
}

var ConditionKeys = []string{
	"periodontitis", "gingivitis", "early_periodontitis", "moderate_periodontitis",
	"advanced_periodontitis", "class_i_occlusion", "class_ii_occlusion",
	"class_iii_occlusion", "overjet", "overbite", "midline_deviation", "crossbite",
}

var ApplicationKeys = []string{
	"orthodontic", "stayplate", "others", "fixed_bridge", "removable_denture",
	"implant",
}

var TMDKeys = []string{
	"clenching", "clicking", "trismus", "muscle_spasm",
}

// sections maps a section name to its key set.
var sections = map[string][]string{
	SectionMedicalConditions: MedicalConditionKeys,
	SectionConditions:        ConditionKeys,
	SectionApplications:      ApplicationKeys,
	SectionTMD:               TMDKeys,
}

// HistoryQuestions are the dental history prompts; answers are stored
// under q1..q8.
var HistoryQuestions = []string{
	"Previous dentist",
	"Date of last dental visit",
	"Reason for last visit",
	"Do you have any dental complaints at present?",
	"Have you had any complications after a dental procedure?",
	"Do your gums bleed when brushing?",
	"Are your teeth sensitive to hot or cold?",
	"How many times a day do you brush your teeth?",
}

func historyKey(i int) string { return "q" + strconv.Itoa(i+1) }

type Tooth struct {
	Symbol string `json:"symbol"`
}

// Chart is the document stored per patient.
type Chart struct {
	Teeth             map[string]Tooth  `json:"teeth"`
	MedicalConditions map[string]bool   `json:"medicalConditions"`
	Conditions        map[string]bool   `json:"conditions"`
	Applications      map[string]bool   `json:"applications"`
	TMD               map[string]bool   `json:"tmd"`
	DentalHistory     map[string]string `json:"dentalHistory"`
}

// NewChart returns an empty chart with every flag present and false.
func NewChart() *Chart {
	c := &Chart{}
	c.Normalize()
	return c
}

func (c *Chart) section(name string) (map[string]bool, bool) {
	switch name {
	case SectionMedicalConditions:
		return c.MedicalConditions, true
	case SectionConditions:
		return c.Conditions, true
	case SectionApplications:
		return c.Applications, true
	case SectionTMD:
		return c.TMD, true
	}
	return nil, false
}

func fillFlags(m map[string]bool, keys []string) map[string]bool {
	if m == nil {
		m = make(map[string]bool, len(keys))
	}
	for _, k := range keys {
		if _, ok := m[k]; !ok {
			m[k] = false
		}
	}
	return m
}

// Normalize upper-cases symbols, drops cleared teeth, trims history answers
// and fills every absent flag with false.
func (c *Chart) Normalize() {
	teeth := make(map[string]Tooth, len(c.Teeth))
	for k, t := range c.Teeth {
		sym := strings.ToUpper(strings.TrimSpace(t.Symbol))
		if sym == "" {
			continue
		}
		teeth[strings.TrimSpace(k)] = Tooth{Symbol: sym}
	}
	c.Teeth = teeth

	c.MedicalConditions = fillFlags(c.MedicalConditions, MedicalConditionKeys)
	c.Conditions = fillFlags(c.Conditions, ConditionKeys)
	c.Applications = fillFlags(c.Applications, ApplicationKeys)
	c.TMD = fillFlags(c.TMD, TMDKeys)

	hist := make(map[string]string, len(HistoryQuestions))
	for i := range HistoryQuestions {
		hist[historyKey(i)] = ""
	}
	for k, v := range c.DentalHistory {
		hist[k] = strings.TrimSpace(v)
	}
	c.DentalHistory = hist
}

func (c *Chart) Validate() error {
	errs := validation.Errors{}
	for k, t := range c.Teeth {
		n, err := strconv.Atoi(k)
		if err != nil || strconv.Itoa(n) != k || n < MinTooth || n > MaxTooth {
			errs.Add("teeth", fmt.Sprintf("tooth %q is not a number between 1 and 32", k))
			continue
		}
		if !IsValidSymbol(t.Symbol) {
			errs.Add("teeth", fmt.Sprintf("tooth %d has unknown symbol %q", n, t.Symbol))
		}
	}
	for name, keys := range sections {
		m, _ := c.section(name)
		allowed := make(map[string]bool, len(keys))
		for _, k := range keys {
			allowed[k] = true
		}
		for k := range m {
			if !allowed[k] {
				errs.Add(name, fmt.Sprintf("unknown key %q", k))
			}
		}
	}
	for k := range c.DentalHistory {
		if !isHistoryKey(k) {
			errs.Add("dentalHistory", fmt.Sprintf("unknown question %q", k))
		}
	}
	return errs.Err()
}

func isHistoryKey(k string) bool {
	if !strings.HasPrefix(k, "q") {
		return false
	}
	n, err := strconv.Atoi(k[1:])
	return err == nil && n >= 1 && n <= len(HistoryQuestions) && k == historyKey(n-1)
}

// Symbol returns the symbol on tooth n, or "" when the tooth is unmarked.
func (c *Chart) Symbol(n int) string {
	return c.Teeth[strconv.Itoa(n)].Symbol
}

// SetTooth assigns symbol to tooth n; an empty symbol clears it.
func (c *Chart) SetTooth(n int, symbol string) error {
	if n < MinTooth || n > MaxTooth {
		return errToothRange
	}
	symbol = strings.ToUpper(strings.TrimSpace(symbol))
	if symbol != "" && !IsValidSymbol(symbol) {
		return validation.Errors{"symbol": fmt.Sprintf("unknown symbol %q", symbol)}
	}
	if c.Teeth == nil {
		c.Teeth = make(map[string]Tooth)
	}
	if symbol == "" {
		delete(c.Teeth, strconv.Itoa(n))
		return nil
	}
	c.Teeth[strconv.Itoa(n)] = Tooth{Symbol: symbol}
	return nil
}

// SetFlags sets the given keys in one section. Keys outside the section's
// fixed set are rejected and nothing is changed.
func (c *Chart) SetFlags(section string, flags map[string]bool) error {
	keys, ok := sections[section]
	if !ok {
		return validation.Errors{"section": fmt.Sprintf("unknown section %q", section)}
	}
	allowed := make(map[string]bool, len(keys))
	for _, k := range keys {
		allowed[k] = true
	}
	var unknown []string
	for k := range flags {
		if !allowed[k] {
			unknown = append(unknown, k)
		}
	}
	if len(unknown) > 0 {
		sort.Strings(unknown)
		return validation.Errors{section: "unknown keys: " + strings.Join(unknown, ", ")}
	}
	c.Normalize()
	m, _ := c.section(section)
	for k, v := range flags {
		m[k] = v
	}
	return nil
}

// Record is a stored chart with its bookkeeping columns.
type Record struct {
	PatientID uuid.UUID  `json:"patient_id"`
	Chart     *Chart     `json:"chart"`
	CreatedBy *uuid.UUID `json:"created_by,omitempty"`
	UpdatedAt time.Time  `json:"updated_at"`
}
