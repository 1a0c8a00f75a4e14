package nostr

// Filter describes a NIP-01 subscription filter
type Filter struct {
	IDs     []string
	Authors []string
	Kinds   []int
	ETags   []string
	PTags   []string
	Since   *int64
	Until   *int64
	Limit   int
}

// ReqObject builds the JSON filter object for a REQ message
func (f Filter) ReqObject() map[string]interface{} {
	obj := map[string]interface{}{}
	if len(f.IDs) > 0 {
		obj["ids"] = f.IDs
	}
	if len(f.Authors) > 0 {
		obj["authors"] = f.Authors
	}
	if len(f.Kinds) > 0 {
		obj["kinds"] = f.Kinds
	}
	if len(f.ETags) > 0 {
		obj["#e"] = f.ETags
	}
	if len(f.PTags) > 0 {
		obj["#p"] = f.PTags
	}
	if f.Since != nil {
		obj["since"] = *f.Since
	}
	if f.Until != nil {
		obj["until"] = *f.Until
	}
	if f.Limit > 0 {
		obj["limit"] = f.Limit
	}
	return obj
}
