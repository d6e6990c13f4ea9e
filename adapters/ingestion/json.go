package ingestion

import (
	"fmt"
	"strings"

	"coinsleuth/domain/core"

	"github.com/tidwall/gjson"
)

// ReadJSON extracts an array of objects at dataPath ("" or "." for the
// document root). Scalar fields become cells; headers follow first appearance.
func ReadJSON(body []byte, dataPath string) (*Dataset, error) {
	if !gjson.ValidBytes(body) {
		return nil, core.NewValidationError("json", "document is not valid JSON")
	}

	var result gjson.Result
	if dataPath == "" || dataPath == "." {
		result = gjson.ParseBytes(body)
	} else {
		result = gjson.GetBytes(body, dataPath)
	}
	if !result.Exists() {
		return nil, core.NewValidationError("json", fmt.Sprintf("data path '%s' not found", dataPath))
	}
	if !result.IsArray() {
		return nil, core.NewValidationError("json", fmt.Sprintf("data path '%s' is not an array", dataPath))
	}

	data := &Dataset{}
	seen := make(map[string]bool)
	var err error

	result.ForEach(func(_, item gjson.Result) bool {
		if !item.IsObject() {
			err = core.NewValidationError("json", "array items must be objects")
			return false
		}
		row := make(Row)
		item.ForEach(func(key, value gjson.Result) bool {
			name := strings.TrimSpace(key.String())
			if !seen[name] {
				seen[name] = true
				data.Headers = append(data.Headers, name)
			}
			row[name] = cellText(value)
			return true
		})
		data.Rows = append(data.Rows, row)
		return true
	})
	if err != nil {
		return nil, err
	}
	if len(data.Rows) == 0 {
		return nil, core.NewValidationError("json", "no records found")
	}
	return data, nil
}

// cellText renders a JSON value as a cell. A numeric sequence such as
// 0011 cannot be written as a JSON number, so numbers keep their raw text.
func cellText(value gjson.Result) string {
	switch value.Type {
	case gjson.Null:
		return ""
	case gjson.Number:
		return value.Raw
	}
	return value.String()
}
