package services

import (
	"fmt"

	"ticket-market/utils"
)

// codeBytes gives 64 bits of randomness per code, rendered as 16 hex chars.
const codeBytes = 8

// CodeIssuer draws redemption codes. Codes are unique within one Issue call;
// across orders uniqueness rests on the code width.
type CodeIssuer struct {
	generate func() (string, error)
}

func NewCodeIssuer() *CodeIssuer {
	return &CodeIssuer{
		generate: func() (string, error) {
			return utils.GenerateCode(codeBytes)
		},
	}
}

func (c *CodeIssuer) Issue(count int) ([]string, error) {
	if count < 1 {
		return nil, fmt.Errorf("invalid code count %d", count)
	}

	codes := make([]string, 0, count)
	seen := make(map[string]struct{}, count)
	for attempts := 0; len(codes) < count; attempts++ {
		if attempts >= count*4 {
			return nil, fmt.Errorf("could not draw %d distinct codes", count)
		}

		code, err := c.generate()
		if err != nil {
			return nil, fmt.Errorf("generating ticket code: %w", err)
		}
		if _, dup := seen[code]; dup {
			continue
		}
		seen[code] = struct{}{}
		codes = append(codes, code)
	}
	return codes, nil
}
