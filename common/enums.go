package common

import (
	"errors"
	"fmt"
	"strings"
)

type Family int

const (
	IPv4 Family = iota
	IPv6
)

func (f *Family) UnmarshalText(b []byte) error {
	switch strings.ToLower(string(b)) {
	case "4", "v4", "ipv4":
		*f = IPv4
	case "6", "v6", "ipv6":
		*f = IPv6
	default:
		return errors.New("invalid IP family")
	}
	return nil
}

func (f Family) String() string {
	switch f {
	case IPv4:
		return "IPv4"
	case IPv6:
		return "IPv6"
	default:
		return fmt.Sprintf("unknown<%d>", int(f))
	}
}

type Status string

const (
	StatusSuccess Status = "success"
	StatusFail    Status = "fail"
	StatusError   Status = "error"
)

func (s *Status) UnmarshalText(b []byte) error {
	switch v := Status(strings.ToLower(string(b))); v {
	case StatusSuccess, StatusFail, StatusError:
		*s = v
		return nil
	default:
		return fmt.Errorf("invalid status %q", string(b))
	}
}

func (s Status) String() string {
	return string(s)
}
