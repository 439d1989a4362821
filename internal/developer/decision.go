package developer

// DecisionKind names a routing decision variant.
type DecisionKind string

const (
	KindReuseExisting  DecisionKind = "reuse_existing"
	KindExtendExisting DecisionKind = "extend_existing"
	KindCreateNew      DecisionKind = "create_new"
)

// Decision is the routing outcome for one task. The variants are
// ReuseExisting, ExtendExisting and CreateNew.
type Decision interface {
	Kind() DecisionKind
	Path() string
	sealed()
}

// ReuseExisting updates a located symbol in place.
type ReuseExisting struct {
	ArtifactKey string
	FilePath    string
	Symbol      string
}

// ExtendExisting adds to an existing file chosen by the oracle.
type ExtendExisting struct {
	FilePath string
}

// CreateNew writes a new file.
type CreateNew struct {
	FilePath string
}

func (ReuseExisting) Kind() DecisionKind  { return KindReuseExisting }
func (ExtendExisting) Kind() DecisionKind { return KindExtendExisting }
func (CreateNew) Kind() DecisionKind      { return KindCreateNew }

func (d ReuseExisting) Path() string  { return d.FilePath }
func (d ExtendExisting) Path() string { return d.FilePath }
func (d CreateNew) Path() string      { return d.FilePath }

func (ReuseExisting) sealed()  {}
func (ExtendExisting) sealed() {}
func (CreateNew) sealed()      {}
