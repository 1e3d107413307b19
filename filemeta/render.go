package filemeta

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"time"

	"gopkg.in/yaml.v2"

	"github.com/flaneur2020/filemeta/filemeta/metainfo"
)

type itemDoc struct {
	Key   string      `json:"key" yaml:"key"`
	Value interface{} `json:"value" yaml:"value"`
}

type groupDoc struct {
	Name  string    `json:"name" yaml:"name"`
	Items []itemDoc `json:"items" yaml:"items"`
}

type resultDoc struct {
	Name     string     `json:"name" yaml:"name"`
	Format   string     `json:"format,omitempty" yaml:"format,omitempty"`
	MimeType string     `json:"mime_type,omitempty" yaml:"mime_type,omitempty"`
	Groups   []groupDoc `json:"groups,omitempty" yaml:"groups,omitempty"`
	Error    string     `json:"error,omitempty" yaml:"error,omitempty"`
}

func toDocs(results []Result) []resultDoc {
	docs := make([]resultDoc, 0, len(results))
	for _, r := range results {
		d := resultDoc{Name: r.Name}
		if r.Err != nil {
			d.Error = r.Err.Error()
		}
		if r.Info != nil {
			d.Format, d.MimeType = r.Info.Format, r.Info.MimeType
			for _, g := range r.Info.Groups {
				gd := groupDoc{Name: g.Name, Items: make([]itemDoc, 0, len(g.Items))}
				for _, it := range g.Items {
					gd.Items = append(gd.Items, itemDoc{Key: it.Key, Value: docValue(it.Value)})
				}
				d.Groups = append(d.Groups, gd)
			}
		}
		docs = append(docs, d)
	}
	return docs
}

// docValue keeps numbers, booleans and sizes typed; times become RFC 3339 strings.
func docValue(v interface{}) interface{} {
	switch x := v.(type) {
	case time.Time:
		return x.Format(time.RFC3339)
	case string, bool, int, int64, float64, metainfo.Size:
		return x
	default:
		return metainfo.FormatValue(x)
	}
}

// RenderJSON writes results as an indented JSON array.
func RenderJSON(w io.Writer, results []Result) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(toDocs(results))
}

// RenderYAML writes results as a YAML sequence.
func RenderYAML(w io.Writer, results []Result) error {
	b, err := yaml.Marshal(toDocs(results))
	if err != nil {
		return fmt.Errorf("failed to marshal yaml: %w", err)
	}
	_, err = w.Write(b)
	return err
}

// RenderText writes one block per file with aligned keys.
func RenderText(w io.Writer, results []Result) error {
	var sb strings.Builder
	for i, r := range results {
		if i > 0 {
			sb.WriteString("\n")
		}
		if r.Info != nil {
			fmt.Fprintf(&sb, "%s: %s (%s)\n", r.Name, r.Info.Format, r.Info.MimeType)
		} else {
			fmt.Fprintf(&sb, "%s\n", r.Name)
		}
		if r.Err != nil {
			fmt.Fprintf(&sb, "  Error: %v\n", r.Err)
		}
		if r.Info == nil {
			continue
		}

		width := 0
		for _, g := range r.Info.Groups {
			for _, it := range g.Items {
				width = max(width, len(it.Key))
			}
		}
		for _, g := range r.Info.Groups {
			fmt.Fprintf(&sb, "  %s\n", g.Name)
			for _, it := range g.Items {
				fmt.Fprintf(&sb, "    %-*s : %s\n", width, it.Key, textValue(it.Text()))
			}
		}
	}
	_, err := io.WriteString(w, sb.String())
	return err
}

// textValue indents continuation lines of multi-line values such as comments.
func textValue(s string) string {
	return strings.ReplaceAll(s, "\n", "\n      ")
}
