package cli

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/aws/smithy-go"
)

// ValidatePayload checks that raw is a JSON document and returns it compacted.
func ValidatePayload(raw string) ([]byte, error) {
	var buf bytes.Buffer
	if err := json.Compact(&buf, []byte(strings.TrimSpace(raw))); err != nil {
		return nil, fmt.Errorf("payload is not valid JSON: %w", err)
	}
	return buf.Bytes(), nil
}

// ResolveFunction turns a stage name ("render-video") into a function name
// using prefix ("animeutopia-"). Full names and ARNs are returned unchanged.
func ResolveFunction(name, prefix string) string {
	if prefix == "" || strings.HasPrefix(name, "arn:") || strings.HasPrefix(name, prefix) {
		return name
	}
	return prefix + name
}

// DescribeAWSError adds an operator hint to common AWS API failures.
func DescribeAWSError(err error) string {
	var apiErr smithy.APIError
	if !errors.As(err, &apiErr) {
		return err.Error()
	}
	switch apiErr.ErrorCode() {
	case "AccessDeniedException", "AccessDenied", "UnauthorizedOperation":
		return fmt.Sprintf("%s (check the IAM permissions of the current profile)", err)
	case "ExpiredToken", "ExpiredTokenException":
		return fmt.Sprintf("%s (refresh your credentials, e.g. aws sso login)", err)
	case "ResourceNotFoundException", "StateMachineDoesNotExist", "InvocationDoesNotExist":
		return fmt.Sprintf("%s (check the name and region)", err)
	default:
		return err.Error()
	}
}
