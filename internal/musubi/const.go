package musubi

const (
	runtimeImportName  = runtimePackageName
	outputSuffix       = "_musubi.go"
	bundleInfix        = ".musubi"
	metadataSuffix     = ".musubi.meta.yaml"
	metadataVersion    = 1
	contributionMarker = "#"
	parentField        = "parent"
	receiverName       = "g"
)

// BundleVersion is the fact bundle format version this package reads.
const BundleVersion = 1

var goReservedKeywords = map[string]bool{
	"break": true, "default": true, "func": true, "interface": true, "select": true,
	"case": true, "defer": true, "go": true, "map": true, "struct": true,
	"chan": true, "else": true, "goto": true, "package": true, "switch": true,
	"const": true, "fallthrough": true, "if": true, "range": true, "type": true,
	"continue": true, "for": true, "import": true, "return": true, "var": true,
}
