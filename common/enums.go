// Package common holds enums shared by configuration, command line and
// server code.
package common

import (
	"fmt"
	"strings"
)

// OutputKind selects which artifacts conversion produces.
type OutputKind int

const (
	OutputKindCss OutputKind = iota
	OutputKindJson
	OutputKindBoth
)

var outputKindNames = []string{"css", "json", "both"}

func (o OutputKind) String() string {
	if o.IsValid() {
		return outputKindNames[o]
	}
	return fmt.Sprintf("OutputKind(%d)", int(o))
}

func (o OutputKind) IsValid() bool {
	return o >= 0 && int(o) < len(outputKindNames)
}

// WantCSS reports whether CSS artifact is requested.
func (o OutputKind) WantCSS() bool {
	return o == OutputKindCss || o == OutputKindBoth
}

// WantJSON reports whether merged JSON artifact is requested.
func (o OutputKind) WantJSON() bool {
	return o == OutputKindJson || o == OutputKindBoth
}

func (o OutputKind) MarshalText() ([]byte, error) {
	if !o.IsValid() {
		return nil, fmt.Errorf("%d is not a valid OutputKind", int(o))
	}
	return []byte(o.String()), nil
}

func (o *OutputKind) UnmarshalText(text []byte) error {
	v, err := ParseOutputKind(string(text))
	if err != nil {
		return err
	}
	*o = v
	return nil
}

// ParseOutputKind attempts to convert a string to OutputKind, case insensitive.
func ParseOutputKind(name string) (OutputKind, error) {
	for i, n := range outputKindNames {
		if strings.EqualFold(n, name) {
			return OutputKind(i), nil
		}
	}
	return OutputKind(0), fmt.Errorf("%s is not a valid OutputKind, try [%s]", name, strings.Join(outputKindNames, ", "))
}

// OutputKindNames returns list of possible string values.
func OutputKindNames() []string {
	return append([]string(nil), outputKindNames...)
}

// StoreKind selects where server keeps conversion artifacts until they are
// downloaded.
type StoreKind int

const (
	StoreKindMemory StoreKind = iota
	StoreKindSqlite
	StoreKindS3
)

var storeKindNames = []string{"memory", "sqlite", "s3"}

func (s StoreKind) String() string {
	if s.IsValid() {
		return storeKindNames[s]
	}
	return fmt.Sprintf("StoreKind(%d)", int(s))
}

func (s StoreKind) IsValid() bool {
	return s >= 0 && int(s) < len(storeKindNames)
}

func (s StoreKind) MarshalText() ([]byte, error) {
	if !s.IsValid() {
		return nil, fmt.Errorf("%d is not a valid StoreKind", int(s))
	}
	return []byte(s.String()), nil
}

func (s *StoreKind) UnmarshalText(text []byte) error {
	v, err := ParseStoreKind(string(text))
	if err != nil {
		return err
	}
	*s = v
	return nil
}

// ParseStoreKind attempts to convert a string to StoreKind, case insensitive.
func ParseStoreKind(name string) (StoreKind, error) {
	for i, n := range storeKindNames {
		if strings.EqualFold(n, name) {
			return StoreKind(i), nil
		}
	}
	return StoreKind(0), fmt.Errorf("%s is not a valid StoreKind, try [%s]", name, strings.Join(storeKindNames, ", "))
}
