package schema

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/lukeod/wasmib/wasmib-go"
	ignore "github.com/sabhiram/go-gitignore"
	log "github.com/sirupsen/logrus"
)

// LoadOptions selects the MIB files to compile.
type LoadOptions struct {
	// Dirs are walked recursively.
	Dirs []string
	// Files are loaded individually, regardless of Ignore.
	Files []string
	// Ignore holds gitignore-style patterns matched against paths relative
	// to each directory in Dirs.
	Ignore []string
}

// Load compiles the selected MIB files and returns the resulting tree.
// Files that fail to parse are skipped with a warning. With nothing to
// load, Load returns a nil (empty) tree.
func Load(ctx context.Context, opts LoadOptions) (*Tree, error) {
	if len(opts.Dirs) == 0 && len(opts.Files) == 0 {
		return nil, nil
	}

	compiler, err := wasmib.NewCompiler(ctx)
	if err != nil {
		return nil, fmt.Errorf("create mib compiler: %w", err)
	}
	defer func() { _ = compiler.Close() }()

	matcher := ignore.CompileIgnoreLines(opts.Ignore...)
	loaded, skipped := 0, 0

	loadFile := func(path string) {
		src, err := os.ReadFile(path)
		if err == nil {
			err = compiler.LoadModule(src)
		}
		if err != nil {
			skipped++
			log.WithError(err).WithField("file", path).Warn("schema: skipping mib file")
			return
		}
		loaded++
	}

	for _, dir := range opts.Dirs {
		err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
			if err != nil {
				if path == dir {
					return err
				}
				return nil
			}
			rel, relErr := filepath.Rel(dir, path)
			if relErr != nil || rel == "." {
				return nil
			}
			rel = filepath.ToSlash(rel)
			if d.IsDir() {
				if matcher.MatchesPath(rel + "/") {
					return filepath.SkipDir
				}
				return nil
			}
			if matcher.MatchesPath(rel) {
				return nil
			}
			loadFile(path)
			return nil
		})
		if err != nil {
			return nil, fmt.Errorf("walk mib dir %s: %w", dir, err)
		}
	}
	for _, f := range opts.Files {
		loadFile(f)
	}

	model, err := compiler.Resolve()
	if err != nil {
		return nil, fmt.Errorf("resolve mibs: %w", err)
	}
	t := FromModel(model)
	log.WithFields(log.Fields{
		"files":   loaded,
		"skipped": skipped,
		"nodes":   t.Len(),
	}).Info("schema: loaded")
	return t, nil
}

// FromModel converts a compiled wasmib model into a Tree.
func FromModel(m *wasmib.Model) *Tree {
	b := NewBuilder()
	for _, id := range m.Roots() {
		addModelNode(b, m, m.GetNode(id), nil)
	}
	return b.Tree()
}

func addModelNode(b *Builder, m *wasmib.Model, n *wasmib.Node, parent []uint32) {
	if n == nil {
		return
	}
	p := append(append(make([]uint32, 0, len(parent)+1), parent...), n.Subid)

	var label string
	if len(n.Definitions) > 0 {
		label = m.GetStr(n.Definitions[0].Label)
	}
	access, syntax := AccessUnknown, SyntaxUnknown
	if obj := m.GetObject(n); obj != nil {
		access = accessFromModel(obj.Access)
		syntax = syntaxFromModel(effectiveBase(m, obj.TypeID))
	}
	b.Add(p, label, access, syntax)

	for _, c := range m.GetChildren(n) {
		addModelNode(b, m, c, p)
	}
}

// effectiveBase follows textual-convention parents down to a base type.
func effectiveBase(m *wasmib.Model, typeID uint32) wasmib.BaseType {
	for typeID != 0 {
		t := m.GetType(typeID)
		if t == nil {
			break
		}
		if t.Base != wasmib.BaseTypeUnknown {
			return t.Base
		}
		typeID = t.Parent
	}
	return wasmib.BaseTypeUnknown
}

func accessFromModel(a wasmib.Access) Access {
	switch a {
	case wasmib.AccessNotAccessible:
		return AccessNone
	case wasmib.AccessAccessibleForNotify:
		return AccessNotify
	case wasmib.AccessReadOnly:
		return AccessReadOnly
	case wasmib.AccessReadWrite, wasmib.AccessReadCreate:
		return AccessReadWrite
	case wasmib.AccessWriteOnly:
		return AccessWriteOnly
	}
	return AccessUnknown
}

func syntaxFromModel(b wasmib.BaseType) Syntax {
	switch b {
	case wasmib.BaseTypeInteger32:
		return SyntaxInteger
	case wasmib.BaseTypeUnsigned32:
		return SyntaxUnsigned
	case wasmib.BaseTypeCounter32:
		return SyntaxCounter32
	case wasmib.BaseTypeCounter64:
		return SyntaxCounter64
	case wasmib.BaseTypeGauge32:
		return SyntaxGauge
	case wasmib.BaseTypeTimeTicks:
		return SyntaxTimeTicks
	case wasmib.BaseTypeIpAddress:
		return SyntaxIPAddress
	case wasmib.BaseTypeOctetString:
		return SyntaxOctetString
	case wasmib.BaseTypeObjectIdentifier:
		return SyntaxObjectID
	case wasmib.BaseTypeOpaque:
		return SyntaxOpaque
	case wasmib.BaseTypeBits:
		return SyntaxBits
	}
	return SyntaxUnknown
}
