package blocks

// Names of escape recovery strategies, in the order they are tried.
const (
	StrategyRaw          = "raw"
	StrategyWholeString  = "decoded_entire_file_as_string"
	StrategyJSONWrapper  = "unescaped_with_json_wrapper"
	StrategyStripSlashes = "stripcslashes_fallback"
)

// Strategy prepares raw input for scanning. Transform returns false when
// strategy is not applicable to the input, in which case scanning is not
// attempted.
type Strategy struct {
	Name      string
	Transform func(raw string) (string, bool)
}

// DefaultStrategies returns escape recovery ladder: raw text first, then
// progressively more aggressive unescaping.
func DefaultStrategies() []Strategy {
	return []Strategy{
		{Name: StrategyRaw, Transform: asIs},
		{Name: StrategyWholeString, Transform: UnwrapJSONString},
		{Name: StrategyJSONWrapper, Transform: changedOnly(UnescapeJSONWrapped)},
		{Name: StrategyStripSlashes, Transform: changedOnly(func(raw string) (string, bool) {
			return StripCSlashes(raw), true
		})},
	}
}

func asIs(raw string) (string, bool) {
	return raw, true
}

// changedOnly makes transformation inapplicable when it did not change
// anything - there is no point to rescan the same text.
func changedOnly(fn func(string) (string, bool)) func(string) (string, bool) {
	return func(raw string) (string, bool) {
		out, ok := fn(raw)
		if !ok || out == raw {
			return "", false
		}
		return out, true
	}
}
