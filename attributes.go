package sqslistener

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sqs/types"
)

// Attribute data types understood by SQS and SNS. Numeric headers carry a
// type qualifier after the dot so the receiving side can restore the exact
// Go type, e.g. "Number.int64".
const (
	attributeTypeString = "String"
	attributeTypeNumber = "Number"
	attributeTypeBinary = "Binary"
)

// EncodeAttributes converts message headers to SQS message attributes.
// Strings map to String attributes, numeric values to type-qualified Number
// attributes with their decimal representation, byte slices to Binary and
// bools to the strings "true"/"false". Any other value is an error.
func EncodeAttributes(headers map[string]any) (map[string]types.MessageAttributeValue, error) {
	if len(headers) == 0 {
		return nil, nil
	}

	attrs := make(map[string]types.MessageAttributeValue, len(headers))
	for name, value := range headers {
		switch v := value.(type) {
		case string:
			attrs[name] = stringAttribute(v)
		case bool:
			attrs[name] = stringAttribute(strconv.FormatBool(v))
		case []byte:
			attrs[name] = types.MessageAttributeValue{
				DataType:    aws.String(attributeTypeBinary),
				BinaryValue: v,
			}
		case int, int8, int16, int32, int64, uint, uint8, uint16, uint32, uint64, float32, float64:
			attrs[name] = numberAttribute(v)
		default:
			return nil, fmt.Errorf("header %q: unsupported type %T", name, value)
		}
	}
	return attrs, nil
}

// DecodeAttributes converts SQS message attributes back to headers,
// restoring numeric types from the Number qualifier.
func DecodeAttributes(attrs map[string]types.MessageAttributeValue) (map[string]any, error) {
	if len(attrs) == 0 {
		return nil, nil
	}

	headers := make(map[string]any, len(attrs))
	for name, attr := range attrs {
		dataType := aws.ToString(attr.DataType)
		switch {
		case dataType == attributeTypeString:
			headers[name] = aws.ToString(attr.StringValue)
		case dataType == attributeTypeBinary:
			headers[name] = attr.BinaryValue
		case dataType == attributeTypeNumber || strings.HasPrefix(dataType, attributeTypeNumber+"."):
			n, err := parseNumber(dataType, aws.ToString(attr.StringValue))
			if err != nil {
				return nil, fmt.Errorf("attribute %q: %w", name, err)
			}
			headers[name] = n
		default:
			return nil, fmt.Errorf("attribute %q: unsupported data type %q", name, dataType)
		}
	}
	return headers, nil
}

func stringAttribute(v string) types.MessageAttributeValue {
	return types.MessageAttributeValue{
		DataType:    aws.String(attributeTypeString),
		StringValue: aws.String(v),
	}
}

func numberAttribute(v any) types.MessageAttributeValue {
	var s string
	switch n := v.(type) {
	case int:
		s = strconv.FormatInt(int64(n), 10)
	case int8:
		s = strconv.FormatInt(int64(n), 10)
	case int16:
		s = strconv.FormatInt(int64(n), 10)
	case int32:
		s = strconv.FormatInt(int64(n), 10)
	case int64:
		s = strconv.FormatInt(n, 10)
	case uint:
		s = strconv.FormatUint(uint64(n), 10)
	case uint8:
		s = strconv.FormatUint(uint64(n), 10)
	case uint16:
		s = strconv.FormatUint(uint64(n), 10)
	case uint32:
		s = strconv.FormatUint(uint64(n), 10)
	case uint64:
		s = strconv.FormatUint(n, 10)
	case float32:
		s = strconv.FormatFloat(float64(n), 'g', -1, 32)
	case float64:
		s = strconv.FormatFloat(n, 'g', -1, 64)
	}
	return types.MessageAttributeValue{
		DataType:    aws.String(fmt.Sprintf("%s.%T", attributeTypeNumber, v)),
		StringValue: aws.String(s),
	}
}

func parseNumber(dataType, s string) (any, error) {
	qualifier := strings.TrimPrefix(dataType, attributeTypeNumber)
	qualifier = strings.TrimPrefix(qualifier, ".")

	switch qualifier {
	case "int":
		n, err := strconv.ParseInt(s, 10, 0)
		return int(n), err
	case "int8":
		n, err := strconv.ParseInt(s, 10, 8)
		return int8(n), err
	case "int16":
		n, err := strconv.ParseInt(s, 10, 16)
		return int16(n), err
	case "int32":
		n, err := strconv.ParseInt(s, 10, 32)
		return int32(n), err
	case "int64":
		return strconv.ParseInt(s, 10, 64)
	case "uint":
		n, err := strconv.ParseUint(s, 10, 0)
		return uint(n), err
	case "uint8":
		n, err := strconv.ParseUint(s, 10, 8)
		return uint8(n), err
	case "uint16":
		n, err := strconv.ParseUint(s, 10, 16)
		return uint16(n), err
	case "uint32":
		n, err := strconv.ParseUint(s, 10, 32)
		return uint32(n), err
	case "uint64":
		return strconv.ParseUint(s, 10, 64)
	case "float32":
		n, err := strconv.ParseFloat(s, 32)
		return float32(n), err
	case "float64":
		return strconv.ParseFloat(s, 64)
	}

	// Unqualified or foreign qualifier: prefer int64, fall back to float64.
	if n, err := strconv.ParseInt(s, 10, 64); err == nil {
		return n, nil
	}
	return strconv.ParseFloat(s, 64)
}
