package chain

import (
	"fmt"

	apperrors "nifty-advisor/internal/errors"
	"nifty-advisor/internal/models"
)

// Validate checks the document against the option-chain contract and returns
// the first violation found. Normalize is lenient; Validate is the strict gate
// applied before it when strict validation is enabled.
func Validate(doc models.Document) error {
	if len(doc) == 0 {
		return apperrors.NewEmptyDataError("root", "")
	}

	raw, ok := doc[KeyRecords]
	if !ok {
		return apperrors.NewMissingKeyError(KeyRecords, "root")
	}
	records, ok := raw.(map[string]interface{})
	if !ok {
		return apperrors.NewInvalidTypeError(KeyRecords, "mapping", TypeName(raw), "root")
	}

	rawData, ok := records[KeyData]
	if !ok {
		return apperrors.NewMissingKeyError(KeyData, KeyRecords)
	}
	data, ok := rawData.([]interface{})
	if !ok {
		return apperrors.NewInvalidTypeError(KeyData, "list", TypeName(rawData), KeyRecords)
	}
	if len(data) == 0 {
		return apperrors.NewEmptyDataError(KeyData, KeyRecords)
	}

	for i, entry := range data {
		path := fmt.Sprintf("records.data[%d]", i)
		if err := validateRecord(entry, path); err != nil {
			return err
		}
	}

	if filtered, ok := doc[KeyFiltered]; ok && filtered != nil {
		if _, ok := filtered.(map[string]interface{}); !ok {
			return apperrors.NewInvalidTypeError(KeyFiltered, "mapping", TypeName(filtered), "root")
		}
	}

	return nil
}

func validateRecord(entry interface{}, path string) error {
	record, ok := entry.(map[string]interface{})
	if !ok {
		return apperrors.NewInvalidTypeError("record", "mapping", TypeName(entry), path)
	}

	ce, hasCE := record[models.SideCall]
	pe, hasPE := record[models.SidePut]
	if (!hasCE || ce == nil) && (!hasPE || pe == nil) {
		return apperrors.NewMissingKeyError("CE or PE", path)
	}

	for _, side := range []string{models.SideCall, models.SidePut} {
		raw, ok := record[side]
		if !ok || raw == nil {
			continue
		}
		sidePath := path + "." + side
		data, ok := raw.(map[string]interface{})
		if !ok {
			return apperrors.NewInvalidTypeError(side, "mapping", TypeName(raw), path)
		}
		for _, key := range []string{KeyStrikePrice, KeyExpiryDate} {
			if _, ok := data[key]; !ok {
				return apperrors.NewMissingKeyError(key, sidePath)
			}
		}
	}
	return nil
}
