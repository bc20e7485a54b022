package registry

import (
	"bufio"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
)

var defaultStateRows = [][2]string{
	{"concept", "#3498db"},
	{"prototipo", "#1abc9c"},
	{"industrializzato", "#2ecc71"},
	{"solo per ricambi", "#f1c40f"},
	{"morto", "#e74c3c"},
}

var defaultFieldRows = [][2]string{
	{"descrizione", "Descrizione"},
	{"quantita", "Quantità"},
	{"ubicazione", "Ubicazione"},
}

func defaultStates() []State {
	states := make([]State, 0, len(defaultStateRows))
	for _, row := range defaultStateRows {
		states = append(states, State{Name: row[0], Color: row[1]})
	}

	return states
}

func defaultFields() []FormField {
	fields := make([]FormField, 0, len(defaultFieldRows))
	for idx, row := range defaultFieldRows {
		fields = append(fields, FormField{Name: row[0], Label: row[1], Order: idx})
	}

	return fields
}

// loadStates reads "name,color" lines. Blank lines and # comments are skipped.
func loadStates(path string) ([]State, error) {
	err := ensureFile(path, "# nome_stato,colore_hex", defaultStateRows)
	if err != nil {
		return nil, err
	}

	lines, err := readLines(path)
	if err != nil {
		return nil, err
	}

	var states []State
	for _, line := range lines {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		parts := strings.Split(line, ",")
		name := strings.TrimSpace(parts[0])
		if name == "" {
			continue
		}
		color := DefaultColor
		if len(parts) > 1 && strings.TrimSpace(parts[1]) != "" {
			color = strings.TrimSpace(parts[1])
		}
		states = append(states, State{Name: name, Color: color})
	}

	if len(states) == 0 {
		return defaultStates(), nil
	}

	return states, nil
}

// loadFormFields reads "name,label" lines; a field's order is its line index.
func loadFormFields(path string) ([]FormField, error) {
	err := ensureFile(path, "# nome,label", defaultFieldRows)
	if err != nil {
		return nil, err
	}

	lines, err := readLines(path)
	if err != nil {
		return nil, err
	}

	var fields []FormField
	for idx, line := range lines {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		parts := strings.SplitN(line, ",", 2)
		name := strings.TrimSpace(parts[0])
		if name == "" {
			continue
		}
		label := ""
		if len(parts) > 1 {
			label = strings.TrimSpace(parts[1])
		}
		if label == "" {
			label = TitleLabel(name)
		}
		fields = append(fields, FormField{Name: name, Label: label, Order: idx})
	}

	if len(fields) == 0 {
		return defaultFields(), nil
	}

	return fields, nil
}

func ensureFile(path, header string, rows [][2]string) error {
	_, err := os.Stat(path)
	if err == nil {
		return nil
	}
	if !errors.Is(err, fs.ErrNotExist) {
		return err
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}

	var b strings.Builder
	b.WriteString(header)
	for _, row := range rows {
		fmt.Fprintf(&b, "\n%s,%s", row[0], row[1])
	}
	b.WriteString("\n")

	return os.WriteFile(path, []byte(b.String()), 0o644)
}

func readLines(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var lines []string
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		lines = append(lines, scanner.Text())
	}

	return lines, scanner.Err()
}
