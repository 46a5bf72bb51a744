package i18n

// Translator retrieves localized messages for Issue codes.
// data provides optional metadata to embed in the message (for example,
// "field" or "kind").
type Translator interface {
	Message(code string, data map[string]string) string
}

// dictTranslator is the built-in dictionary-based Translator.
type dictTranslator struct{ lang string }

func (t dictTranslator) Message(code string, data map[string]string) string {
	switch t.lang {
	case "ja":
		switch code {
		case "schema_mismatch":
			return "インスタンスがスキーマと一致しません"
		case "comparator_failure":
			return "コンパレータが失敗しました"
		case "malformed_input":
			return "入力が不正です"
		case "serialization_failure":
			return "状態の形式が不正です"
		case "invalid_schema":
			return "スキーマ定義が不正です"
		case "parse_error":
			return "解析エラー"
		case "sink_failure":
			return "結果の書き込みに失敗しました"
		}
	default: // "en"
		switch code {
		case "schema_mismatch":
			return "instance does not match the schema"
		case "comparator_failure":
			return "comparator failed"
		case "malformed_input":
			return "malformed input"
		case "serialization_failure":
			return "incompatible state shape"
		case "invalid_schema":
			return "invalid schema descriptor"
		case "parse_error":
			return "parse error"
		case "sink_failure":
			return "result write failed"
		}
	}
	return code
}

var currentTranslator Translator = dictTranslator{lang: "en"}

// SetLanguage switches the built-in Translator language ("en"/"ja").
func SetLanguage(lang string) {
	if lang != "ja" {
		lang = "en"
	}
	currentTranslator = dictTranslator{lang: lang}
}

// SetTranslator replaces the Translator implementation (not limited to the
// dictionary version).
func SetTranslator(tr Translator) {
	if tr == nil {
		currentTranslator = dictTranslator{lang: "en"}
		return
	}
	currentTranslator = tr
}

// T fetches a message for the given code using the current Translator.
func T(code string, data map[string]string) string { return currentTranslator.Message(code, data) }
