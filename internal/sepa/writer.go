package sepa

import (
	"bytes"
	"encoding/xml"
	"fmt"
)

// MarshalOptions controls serialization.
type MarshalOptions struct {
	// Indent is the string used for indentation. Empty writes one line.
	// Default: "  " (two spaces)
	Indent string

	// IncludeXMLDeclaration determines whether to write the XML declaration.
	// Default: true
	IncludeXMLDeclaration bool
}

// DefaultMarshalOptions returns the default serialization options.
func DefaultMarshalOptions() MarshalOptions {
	return MarshalOptions{
		Indent:                "  ",
		IncludeXMLDeclaration: true,
	}
}

// Marshal serializes doc as UTF-8 XML.
func Marshal(doc *Document, options MarshalOptions) ([]byte, error) {
	var buffer bytes.Buffer

	// Write XML declaration if requested.
	if options.IncludeXMLDeclaration {
		buffer.WriteString(xml.Header)
	}

	enc := xml.NewEncoder(&buffer)
	if options.Indent != "" {
		enc.Indent("", options.Indent)
	}
	if err := enc.Encode(doc); err != nil {
		return nil, fmt.Errorf("failed to marshal XML: %w", err)
	}
	if err := enc.Close(); err != nil {
		return nil, fmt.Errorf("failed to marshal XML: %w", err)
	}

	buffer.WriteByte('\n')

	return buffer.Bytes(), nil
}

// Parse reads a pain.008.001.02 document.
func Parse(data []byte) (*Document, error) {
	var doc Document
	if err := xml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("failed to parse XML: %w", err)
	}
	return &doc, nil
}
