package registry

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"unicode"
)

const passwordSymbols = "!@#$%^&*()-_=+[]{};:,.<>?/\\|`~\"'"

// Policy is the configurable password rule set.
type Policy struct {
	MinLength     int  `json:"min_length"`
	RequireDigit  bool `json:"require_digit"`
	RequireSymbol bool `json:"require_symbol"`
	RequireUpper  bool `json:"require_upper"`
}

func DefaultPolicy() Policy {
	return Policy{
		MinLength:     8,
		RequireDigit:  true,
		RequireSymbol: true,
		RequireUpper:  false,
	}
}

// Validate returns one message per violated rule; an empty result means the password is accepted.
func (p Policy) Validate(password string) []string {
	var violations []string
	if len([]rune(password)) < p.MinLength {
		violations = append(violations, fmt.Sprintf("password must be at least %d characters long", p.MinLength))
	}
	if p.RequireDigit && !strings.ContainsFunc(password, unicode.IsDigit) {
		violations = append(violations, "password must contain at least one digit")
	}
	if p.RequireSymbol && !strings.ContainsAny(password, passwordSymbols) {
		violations = append(violations, "password must contain at least one symbol")
	}
	if p.RequireUpper && !strings.ContainsFunc(password, unicode.IsUpper) {
		violations = append(violations, "password must contain at least one uppercase letter")
	}

	return violations
}

// Description renders the policy for display in clients.
func (p Policy) Description() string {
	parts := []string{fmt.Sprintf("minimum length %d", p.MinLength)}
	if p.RequireDigit {
		parts = append(parts, "at least one digit")
	}
	if p.RequireSymbol {
		parts = append(parts, "at least one symbol")
	}
	if p.RequireUpper {
		parts = append(parts, "at least one uppercase letter")
	}

	return strings.Join(parts, ", ")
}

// loadPolicy reads a "rule,value" CSV. A missing file yields the default policy.
func loadPolicy(path string) (Policy, error) {
	policy := DefaultPolicy()

	f, err := os.Open(path)
	if errors.Is(err, fs.ErrNotExist) {
		return policy, nil
	}
	if err != nil {
		return policy, err
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.FieldsPerRecord = -1
	r.Comment = '#'
	r.TrimLeadingSpace = true

	header := true
	for {
		record, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return policy, err
		}
		if header {
			header = false
			continue
		}
		if len(record) < 2 {
			continue
		}

		value := strings.TrimSpace(record[1])
		switch strings.ToLower(strings.TrimSpace(record[0])) {
		case "min_length":
			n, err := strconv.Atoi(value)
			if err != nil {
				continue
			}
			policy.MinLength = max(1, n)
		case "require_digit":
			policy.RequireDigit = parseBool(value)
		case "require_symbol":
			policy.RequireSymbol = parseBool(value)
		case "require_upper":
			policy.RequireUpper = parseBool(value)
		}
	}

	return policy, nil
}

func parseBool(value string) bool {
	switch strings.ToLower(value) {
	case "1", "true", "yes", "on":
		return true
	}

	return false
}
