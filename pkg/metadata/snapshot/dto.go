package snapshot

// The document types mirror schema.json. Every input format is normalized
// to JSON before it is decoded into them.

type document struct {
	Assemblies []assemblyDoc `json:"assemblies"`
}

type assemblyDoc struct {
	Name       string      `json:"name"`
	Version    string      `json:"version"`
	EntryPoint string      `json:"entry_point"`
	Modules    []moduleDoc `json:"modules"`
}

type moduleDoc struct {
	Name  string    `json:"name"`
	Types []typeDoc `json:"types"`
}

type typeDoc struct {
	Namespace     string            `json:"namespace"`
	Name          string            `json:"name"`
	Kind          string            `json:"kind"`
	Access        string            `json:"access"`
	Base          string            `json:"base"`
	Interfaces    []string          `json:"interfaces"`
	GenericParams []genericParamDoc `json:"generic_params"`
	Attributes    []string          `json:"attributes"`
	Fields        []fieldDoc        `json:"fields"`
	Properties    []propertyDoc     `json:"properties"`
	Methods       []methodDoc       `json:"methods"`
	Nested        []typeDoc         `json:"nested"`
}

type genericParamDoc struct {
	Name        string   `json:"name"`
	Constraints []string `json:"constraints"`
}

type fieldDoc struct {
	Name       string   `json:"name"`
	Type       string   `json:"type"`
	Access     string   `json:"access"`
	Static     bool     `json:"static"`
	Attributes []string `json:"attributes"`
}

type propertyDoc struct {
	Name       string   `json:"name"`
	Type       string   `json:"type"`
	Getter     string   `json:"getter"`
	Setter     string   `json:"setter"`
	Attributes []string `json:"attributes"`
}

type methodDoc struct {
	Name          string            `json:"name"`
	Access        string            `json:"access"`
	Flags         []string          `json:"flags"`
	Semantics     string            `json:"semantics"`
	GenericParams []genericParamDoc `json:"generic_params"`
	Params        []paramDoc        `json:"params"`
	Returns       string            `json:"returns"`
	Attributes    []string          `json:"attributes"`
	Overrides     []methodRefDoc    `json:"overrides"`
	Body          *[]instructionDoc `json:"body"`
}

type paramDoc struct {
	Name string `json:"name"`
	Type string `json:"type"`
}

type methodRefDoc struct {
	Type        string   `json:"type"`
	Name        string   `json:"name"`
	Params      []string `json:"params"`
	Returns     string   `json:"returns"`
	Static      bool     `json:"static"`
	GenericArgs []string `json:"generic_args"`
}

type signatureDoc struct {
	Params  []string `json:"params"`
	Returns string   `json:"returns"`
	Static  bool     `json:"static"`
}

type instructionDoc struct {
	Offset    *int          `json:"offset"`
	Op        string        `json:"op"`
	Method    *methodRefDoc `json:"method"`
	Signature *signatureDoc `json:"signature"`
	Type      string        `json:"type"`
	Value     *string       `json:"value"`
	Int       *int64        `json:"int"`
}
