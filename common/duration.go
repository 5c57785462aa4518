package common

import (
	"fmt"
	"strconv"
	"time"
)

type Duration time.Duration

// UnmarshalText accepts Go duration strings ("5m", "90s") and bare integers,
// which are read as seconds.
func (d *Duration) UnmarshalText(b []byte) error {
	s := string(b)

	if secs, err := strconv.ParseInt(s, 10, 64); err == nil {
		if secs < 0 {
			return fmt.Errorf("duration should be positive, but got %ds", secs)
		}
		*d = Duration(time.Duration(secs) * time.Second)
		return nil
	}

	dd, err := time.ParseDuration(s)
	if err != nil {
		return err
	}

	if dd < 0 {
		return fmt.Errorf("duration should be positive, but got %s", dd)
	}

	*d = Duration(dd)
	return nil
}

func (d Duration) String() string {
	return time.Duration(d).String()
}
