package pricing

// collectCodes returns the used codes followed by the new one in input order.
// Codes are compared verbatim. An empty new code means none was sent; any
// other value, blank or not, is looked up like the rest. Any repetition is a
// DuplicateDiscount.
func collectCodes(used []string, newCode string) ([]string, error) {
	seen := make(map[string]struct{}, len(used)+1)
	codes := make([]string, 0, len(used)+1)
	for _, code := range used {
		if _, dup := seen[code]; dup {
			return nil, ErrDuplicateDiscount
		}
		seen[code] = struct{}{}
		codes = append(codes, code)
	}
	if newCode != "" {
		if _, dup := seen[newCode]; dup {
			return nil, ErrDuplicateDiscount
		}
		codes = append(codes, newCode)
	}
	return codes, nil
}
