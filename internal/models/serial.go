package models

import "fmt"

const SerialCodeLength = 15

// ValidateSerial checks an IMEI-style serial code
func ValidateSerial(code string) error {
	if len(code) != SerialCodeLength {
		return fmt.Errorf("%w: %q", ErrInvalidSerial, code)
	}
	for _, r := range code {
		if r < '0' || r > '9' {
			return fmt.Errorf("%w: %q", ErrInvalidSerial, code)
		}
	}
	return nil
}

// ValidateSerials checks every code and rejects repeats within the list
func ValidateSerials(codes []string) error {
	if len(codes) == 0 {
		return ErrInvalidQuantity
	}
	seen := make(map[string]struct{}, len(codes))
	for _, code := range codes {
		if err := ValidateSerial(code); err != nil {
			return err
		}
		if _, dup := seen[code]; dup {
			return fmt.Errorf("%w: %s", ErrDuplicateSerialArg, code)
		}
		seen[code] = struct{}{}
	}
	return nil
}

// ValidateDeviceSerials checks the per-device serial list an order is originated with
func ValidateDeviceSerials(deviceCount int, codes []string) error {
	if deviceCount <= 0 || len(codes) != deviceCount {
		return fmt.Errorf("%w: %d serials for %d devices", ErrInvalidQuantity, len(codes), deviceCount)
	}
	return ValidateSerials(codes)
}
