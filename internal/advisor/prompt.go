package advisor

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"text/template"

	"gopkg.in/yaml.v3"
)

// Mode selects which prompt a pipeline builds.
type Mode string

const (
	ModeRecommend Mode = "recommend"
	ModeEvaluate  Mode = "evaluate"
)

// ParseMode accepts "recommend" or "evaluate".
func ParseMode(raw string) (Mode, error) {
	switch m := Mode(strings.ToLower(strings.TrimSpace(raw))); m {
	case ModeRecommend, ModeEvaluate:
		return m, nil
	default:
		return "", fmt.Errorf("unknown mode %q", raw)
	}
}

// TitleCount is the number of titles the recommend prompt asks for.
const TitleCount = 3

const recommendTemplate = `Anda adalah dosen pembimbing skripsi yang berpengalaman.

Gunakan referensi skripsi berikut sebagai bahan pertimbangan:
{{.Context}}
Tugas Anda:
1. Memberikan {{.TitleCount}} rekomendasi judul skripsi
2. Setiap judul disertai variabel, metode, dan objek penelitian
3. Judul harus relevan, akademik, dan layak diteliti

Pertanyaan mahasiswa:
{{.Question}}
`

const evaluateTemplate = `Anda adalah dosen pembimbing skripsi yang berpengalaman.

Ringkasan skripsi terdahulu yang relevan:
- Jumlah skripsi: {{.Stats.Count}}
{{- if .Stats.HasYears}}
- Rentang tahun: {{deref .Stats.YearMin}} - {{deref .Stats.YearMax}}
{{- end}}
- Variabel terbanyak:{{range .Stats.Variables}} {{.Value}} ({{.Count}});{{else}} -{{end}}
- Metode terbanyak:{{range .Stats.Methods}} {{.Value}} ({{.Count}});{{else}} -{{end}}

Contoh skripsi terdahulu:
{{.Context}}
Kata kunci: {{if .Keyword}}{{.Keyword}}{{else}}-{{end}}
Topik yang diajukan mahasiswa:
{{.Question}}

Tugas Anda:
1. Berikan penilaian kelayakan dengan tepat satu label: {{join .Verdicts " / "}}
2. Jelaskan alasan penilaian berdasarkan data di atas
3. Usulkan satu judul skripsi yang lebih tepat
`

// PromptData is what a prompt template can reference.
type PromptData struct {
	Context    string
	Question   string
	Keyword    string
	TitleCount int
	Stats      Stats
	Verdicts   []string
}

// Template is a named prompt template for one mode.
type Template struct {
	mode Mode
	tmpl *template.Template
}

var funcs = template.FuncMap{
	"join": strings.Join,
	"deref": func(p *int) int {
		if p == nil {
			return 0
		}
		return *p
	},
}

// ParseTemplate compiles a text/template prompt for the given mode.
func ParseTemplate(mode Mode, text string) (*Template, error) {
	t, err := template.New(string(mode)).Funcs(funcs).Option("missingkey=error").Parse(text)
	if err != nil {
		return nil, fmt.Errorf("parse %s template: %w", mode, err)
	}
	return &Template{mode: mode, tmpl: t}, nil
}

// Mode reports which mode the template was compiled for.
func (t *Template) Mode() Mode { return t.mode }

// Execute substitutes data into the template. User text is inserted verbatim.
func (t *Template) Execute(data PromptData) (string, error) {
	var b strings.Builder
	if err := t.tmpl.Execute(&b, data); err != nil {
		return "", fmt.Errorf("render %s prompt: %w", t.mode, err)
	}
	return b.String(), nil
}

// Templates holds one template per mode.
type Templates struct {
	Recommend *Template
	Evaluate  *Template
}

// For returns the template for mode.
func (ts Templates) For(mode Mode) (*Template, error) {
	switch mode {
	case ModeRecommend:
		if ts.Recommend != nil {
			return ts.Recommend, nil
		}
	case ModeEvaluate:
		if ts.Evaluate != nil {
			return ts.Evaluate, nil
		}
	}
	return nil, fmt.Errorf("no template for mode %q", mode)
}

// DefaultTemplates returns the built-in Indonesian prompts.
func DefaultTemplates() Templates {
	rec, err := ParseTemplate(ModeRecommend, recommendTemplate)
	if err != nil {
		panic(err)
	}
	ev, err := ParseTemplate(ModeEvaluate, evaluateTemplate)
	if err != nil {
		panic(err)
	}
	return Templates{Recommend: rec, Evaluate: ev}
}

type templateFile struct {
	Recommend string `yaml:"recommend"`
	Evaluate  string `yaml:"evaluate"`
}

// LoadTemplates reads YAML with optional "recommend" and "evaluate" keys.
// Missing keys keep the built-in template.
func LoadTemplates(r io.Reader) (Templates, error) {
	var raw templateFile
	if err := yaml.NewDecoder(r).Decode(&raw); err != nil && !errors.Is(err, io.EOF) {
		return Templates{}, fmt.Errorf("decode templates: %w", err)
	}

	ts := DefaultTemplates()
	if strings.TrimSpace(raw.Recommend) != "" {
		t, err := ParseTemplate(ModeRecommend, raw.Recommend)
		if err != nil {
			return Templates{}, err
		}
		ts.Recommend = t
	}
	if strings.TrimSpace(raw.Evaluate) != "" {
		t, err := ParseTemplate(ModeEvaluate, raw.Evaluate)
		if err != nil {
			return Templates{}, err
		}
		ts.Evaluate = t
	}
	return ts, nil
}

// LoadTemplatesFile reads templates from path; an empty path yields the defaults.
func LoadTemplatesFile(path string) (Templates, error) {
	if path == "" {
		return DefaultTemplates(), nil
	}
	f, err := os.Open(path)
	if err != nil {
		return Templates{}, fmt.Errorf("open templates: %w", err)
	}
	defer f.Close()
	return LoadTemplates(f)
}

// BuildPrompt fills a recommend template with the context and the student's question.
func BuildPrompt(block ContextBlock, question string, t *Template) (string, error) {
	return t.Execute(PromptData{
		Context:    block.String(),
		Question:   question,
		TitleCount: TitleCount,
	})
}

// BuildEvaluationPrompt fills an evaluate template with context, summary
// statistics, the filter keyword and the proposed topic.
func BuildEvaluationPrompt(block ContextBlock, stats Stats, keyword, topic string, t *Template) (string, error) {
	return t.Execute(PromptData{
		Context:    block.String(),
		Question:   topic,
		Keyword:    keyword,
		TitleCount: 1,
		Stats:      stats,
		Verdicts:   VerdictLabels(),
	})
}
