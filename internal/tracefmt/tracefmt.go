// Package tracefmt renders the human-readable debug trace of one exchange.
package tracefmt

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/bytedance/sonic"
)

// Separator precedes the connection info section of every trace.
const Separator = "* Connection info\n"

const indentUnit = "    "

var encoder = sonic.Config{
	SortMapKeys: true,
	EscapeHTML:  false,
}.Froze()

// Build concatenates the verbose protocol log, Separator and the rendered
// info map. Info is pretty-printed as JSON, then stripped of its braces
// with each indent level replaced by "* ".
func Build(verbose []byte, info map[string]interface{}) (string, error) {
	rendered, err := Info(info)
	if err != nil {
		return "", err
	}

	var b strings.Builder
	b.Grow(len(verbose) + len(Separator) + len(rendered))
	b.Write(verbose)
	if len(verbose) > 0 && verbose[len(verbose)-1] != '\n' {
		b.WriteByte('\n')
	}
	b.WriteString(Separator)
	b.WriteString(rendered)
	return b.String(), nil
}

// Info renders info as brace-less "* " prefixed lines.
func Info(info map[string]interface{}) (string, error) {
	if info == nil {
		info = map[string]interface{}{}
	}
	raw, err := encoder.MarshalIndent(info, "", indentUnit)
	if err != nil {
		return "", fmt.Errorf("marshal connection info: %w", err)
	}

	lines := bytes.Split(raw, []byte("\n"))
	out := make([]string, 0, len(lines))
	for _, line := range lines {
		depth := 0
		for bytes.HasPrefix(line, []byte(indentUnit)) {
			line = line[len(indentUnit):]
			depth++
		}
		text := strings.TrimRight(string(line), " ")
		text = strings.TrimSuffix(text, "{")
		text = strings.TrimPrefix(text, "},")
		text = strings.TrimPrefix(text, "}")
		text = strings.TrimRight(text, " ")
		if text == "" {
			continue
		}
		out = append(out, strings.Repeat("* ", depth)+text)
	}
	return strings.Join(out, "\n"), nil
}
