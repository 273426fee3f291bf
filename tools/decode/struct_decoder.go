package decode

import (
	"encoding/json"
	"fmt"
	"math"
	"reflect"
	"strconv"

	"github.com/mitchellh/mapstructure"
)

// Options 用于定制 Decode 行为。
type Options struct {
	// 宽松解码："123" -> int 之类。客户端 payload 校验时必须关闭
	WeaklyTypedInput bool
	// 出现结构体里没有的字段时报错
	ErrorUnused bool
}

// DefaultOptions 返回默认选项：严格模式，用于校验客户端消息。
func DefaultOptions() Options {
	return Options{
		WeaklyTypedInput: false,
		ErrorUnused:      true,
	}
}

// Lenient 宽松模式，用于解码可信来源（NATS 协作方）的 payload。
func Lenient() Options {
	return Options{WeaklyTypedInput: true}
}

// Value 将 JSON 解出来的任意值（通常是 map[string]any）解码到 T。
// 字段读取使用 `json` tag。
func Value[T any](v any, opts ...Options) (*T, error) {
	if v == nil {
		return nil, fmt.Errorf("value is nil")
	}
	cfg := DefaultOptions()
	if len(opts) > 0 {
		cfg = opts[0]
	}

	var out T
	decCfg := &mapstructure.DecoderConfig{
		TagName:          "json",
		Result:           &out,
		WeaklyTypedInput: cfg.WeaklyTypedInput,
		ErrorUnused:      cfg.ErrorUnused,
		DecodeHook: mapstructure.ComposeDecodeHookFunc(
			floatToIntHook(),
			jsonRawStringToMapHook(),
		),
	}

	dec, err := mapstructure.NewDecoder(decCfg)
	if err != nil {
		return nil, fmt.Errorf("new decoder: %w", err)
	}
	if err := dec.Decode(v); err != nil {
		return nil, fmt.Errorf("decode value: %w", err)
	}
	return &out, nil
}

// String 读取字符串值。
func String(v any) (string, error) {
	s, ok := v.(string)
	if !ok {
		return "", fmt.Errorf("value type %T not string", v)
	}
	return s, nil
}

// Int64 读取整数（兼容 float64 / json.Number / 数字字符串）。
// 带小数部分的 float 视为非法。
func Int64(v any) (int64, error) {
	switch t := v.(type) {
	case float64:
		if t != math.Trunc(t) || math.IsInf(t, 0) {
			return 0, fmt.Errorf("value %v is not an integer", t)
		}
		return int64(t), nil
	case int64:
		return t, nil
	case int:
		return int64(t), nil
	case json.Number:
		return t.Int64()
	case string:
		n, err := strconv.ParseInt(t, 10, 64)
		if err != nil {
			return 0, fmt.Errorf("string parse int64: %w", err)
		}
		return n, nil
	default:
		return 0, fmt.Errorf("value type %T not number", v)
	}
}

// -----------------------------
// Decode Hooks
// -----------------------------

// floatToIntHook：整数值的 float64 转为 int / int32 / int64，带小数的报错。
func floatToIntHook() mapstructure.DecodeHookFunc {
	return func(from, to reflect.Kind, data any) (any, error) {
		if from != reflect.Float64 {
			return data, nil
		}
		f := data.(float64)
		switch to {
		case reflect.Int, reflect.Int32, reflect.Int64:
			if f != math.Trunc(f) {
				return nil, fmt.Errorf("expected integer, got %v", f)
			}
		}
		switch to {
		case reflect.Int:
			return int(f), nil
		case reflect.Int32:
			return int32(f), nil
		case reflect.Int64:
			return int64(f), nil
		}
		return data, nil
	}
}

// jsonRawStringToMapHook：把 JSON 字符串自动转为 map[string]any（部分旧客户端把对象序列化成字符串发送）。
func jsonRawStringToMapHook() mapstructure.DecodeHookFunc {
	return func(from, to reflect.Kind, data any) (any, error) {
		if from != reflect.String || to != reflect.Struct {
			return data, nil
		}
		var m map[string]any
		if err := json.Unmarshal([]byte(data.(string)), &m); err == nil {
			return m, nil
		}
		return data, nil
	}
}
