package traversal

import (
	"context"
	"fmt"
	"path"
	"sort"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/planterhq/planter/internal/config"
	"github.com/planterhq/planter/internal/filesystem"
	"github.com/planterhq/planter/internal/schema"
)

// newTestHandler builds a handler over a fresh in-memory filesystem with
// one parsed stem per root.
func newTestHandler(t *testing.T, stems map[string]string) (*Handler, *filesystem.MemoryFilesystem) {
	t.Helper()

	fsHandler := filesystem.NewMemoryFilesystem()
	configHandler := config.NewConfig(nil)

	roots := make([]string, 0, len(stems))
	for root := range stems {
		roots = append(roots, root)
	}
	sort.Strings(roots)

	for i, rootPath := range roots {
		node, err := schema.Parse(stems[rootPath])
		require.NoError(t, err)
		root, err := filesystem.NewRoot(rootPath)
		require.NoError(t, err)
		require.NoError(t, configHandler.AddParsedStem(fmt.Sprintf("stem-%d", i), root, node))
	}

	return NewHandler(configHandler, fsHandler), fsHandler
}

func seedFile(t *testing.T, fsHandler filesystem.Filesystem, p string, content string) {
	t.Helper()

	require.NoError(t, filesystem.CreateDirectoryAll(fsHandler, path.Dir(p)))
	require.NoError(t, fsHandler.CreateFile(p, []byte(content)))
}

func reportPaths(report *Report) []string {
	paths := make([]string, 0, report.Len())
	for _, res := range report.Entries() {
		paths = append(paths, res.Path)
	}

	return paths
}

const exampleSchema = `
:let some_variable = some_value

sub-directory/
    $variable/
        :match [A-Z][a-z]*
        inner-directory/
    blank_file
        :source /resources/empty
`

// TestTraverse_Success_Example tests a full run over one stem with a
// caller-provided binding value, then checks a second run changes
// nothing.
func TestTraverse_Success_Example(t *testing.T) {
	t.Parallel()

	handler, fsHandler := newTestHandler(t, map[string]string{"/primary": exampleSchema})
	seedFile(t, fsHandler, "/resources/empty", "")

	report, err := handler.Traverse(context.Background(), Params{
		Target: "/primary",
		Vars:   map[string]string{"variable": "Example"},
	})
	require.NoError(t, err)
	require.False(t, report.Failed())

	want := []string{
		"/primary",
		"/primary/sub-directory",
		"/primary/sub-directory/blank_file",
		"/primary/sub-directory/Example",
		"/primary/sub-directory/Example/inner-directory",
	}
	assert.Equal(t, want, reportPaths(report))
	for _, res := range report.Entries() {
		assert.Equal(t, OutcomeCreated, res.Outcome, res.Path)
	}

	assert.True(t, fsHandler.IsDirectory("/primary/sub-directory/Example/inner-directory"))
	assert.True(t, fsHandler.IsFile("/primary/sub-directory/blank_file"))

	res, ok := report.Get("/primary/sub-directory")
	require.True(t, ok)
	kinds := make([]OperationKind, 0, len(res.Operations))
	for _, op := range res.Operations {
		kinds = append(kinds, op.Kind)
	}
	assert.Equal(t, []OperationKind{OpCreateDirectory, OpSetOwner, OpSetGroup, OpSetPermissions}, kinds)

	second, err := handler.Traverse(context.Background(), Params{
		Target: "/primary",
		Vars:   map[string]string{"variable": "Example"},
	})
	require.NoError(t, err)
	assert.False(t, second.Failed())
	assert.Empty(t, second.Operations())
	for _, res := range second.Entries() {
		assert.Equal(t, OutcomeAlreadyMatches, res.Outcome, res.Path)
	}
}

// TestTraverse_Error_PatternMismatch tests a caller-provided value that
// fails the pattern of the binding it reaches.
func TestTraverse_Error_PatternMismatch(t *testing.T) {
	t.Parallel()

	handler, _ := newTestHandler(t, map[string]string{"/primary": exampleSchema})

	report, err := handler.Traverse(context.Background(), Params{
		Target: "/primary",
		Vars:   map[string]string{"variable": "example"},
	})
	assert.ErrorIs(t, err, ErrPatternMismatch)
	// The stem root was already produced by the time the value reached
	// its binding.
	_, ok := report.Get("/primary")
	assert.True(t, ok)
}

const projectSchema = `
$project/
    :match [a-z][a-z0-9]*
    src/
    readme
        :source /resources/readme
`

// TestTraverse_Success_TargetPath tests producing one deep path through
// a dynamic binding without any preset variables.
func TestTraverse_Success_TargetPath(t *testing.T) {
	t.Parallel()

	handler, fsHandler := newTestHandler(t, map[string]string{"/code": projectSchema})
	seedFile(t, fsHandler, "/resources/readme", "hello\n")

	report, err := handler.Traverse(context.Background(), Params{Target: "/code/webapp"})
	require.NoError(t, err)
	require.False(t, report.Failed())

	assert.True(t, fsHandler.IsDirectory("/code/webapp/src"))
	content, err := fsHandler.ReadFile("/code/webapp/readme")
	require.NoError(t, err)
	assert.Equal(t, "hello\n", string(content))

	res, ok := report.Get("/code/webapp/readme")
	require.True(t, ok)
	assert.Equal(t, filesystem.KindFile, res.Kind)
	assert.Equal(t, OutcomeCreated, res.Outcome)
	assert.Equal(t, schema.DefaultFileMode, res.Mode)
}

// TestTraverse_Error_Unproducible tests a target no binding can admit.
func TestTraverse_Error_Unproducible(t *testing.T) {
	t.Parallel()

	handler, _ := newTestHandler(t, map[string]string{"/code": projectSchema})

	report, err := handler.Traverse(context.Background(), Params{Target: "/code/Nope"})
	assert.ErrorIs(t, err, ErrUnproducible)
	assert.ErrorContains(t, err, "$project")

	_, ok := report.Get("/code")
	assert.True(t, ok, "the root was produced before matching failed")
}

// TestTraverse_Error_RelativeTarget tests that targets must be absolute.
func TestTraverse_Error_RelativeTarget(t *testing.T) {
	t.Parallel()

	handler, _ := newTestHandler(t, map[string]string{"/code": projectSchema})

	_, err := handler.Traverse(context.Background(), Params{Target: "code/webapp"})
	assert.ErrorIs(t, err, filesystem.ErrNotAbsolute)
}

// TestTraverse_Success_Attributes tests ownership and mode application,
// owner names passing through the configured user map, and that the
// mode never inherits while ownership does.
func TestTraverse_Success_Attributes(t *testing.T) {
	t.Parallel()

	const text = `
:owner admin
:group staff
:mode 750

shared/
    :mode 2775
    drop/
`
	handler, fsHandler := newTestHandler(t, map[string]string{"/srv": text})
	handler.config.Usermap = config.NameMap{"admin": "svc-admin"}

	report, err := handler.Traverse(context.Background(), Params{Target: "/srv"})
	require.NoError(t, err)
	require.False(t, report.Failed())

	root, err := fsHandler.Attributes("/srv")
	require.NoError(t, err)
	assert.Equal(t, filesystem.Attrs{Owner: "svc-admin", Group: "staff", Mode: schema.Mode(0o750)}, root)

	shared, err := fsHandler.Attributes("/srv/shared")
	require.NoError(t, err)
	assert.Equal(t, filesystem.Attrs{Owner: "svc-admin", Group: "staff", Mode: schema.Mode(0o2775)}, shared)

	drop, err := fsHandler.Attributes("/srv/shared/drop")
	require.NoError(t, err)
	assert.Equal(t, filesystem.Attrs{Owner: "svc-admin", Group: "staff", Mode: schema.DefaultDirectoryMode}, drop)
}

// TestTraverse_Success_AttributeExpressions tests owner and group names
// assembled from variables of the enclosing directory.
func TestTraverse_Success_AttributeExpressions(t *testing.T) {
	t.Parallel()

	const text = `
:let x = dae
:let y = s

attrs/
    :owner ${x}mon
    :group ${y}y${y}
`
	handler, fsHandler := newTestHandler(t, map[string]string{"/srv": text})

	_, err := handler.Traverse(context.Background(), Params{Target: "/srv"})
	require.NoError(t, err)

	attrs, err := fsHandler.Attributes("/srv/attrs")
	require.NoError(t, err)
	assert.Equal(t, "daemon", attrs.Owner)
	assert.Equal(t, "sys", attrs.Group)
}

// TestTraverse_Success_Reconcile tests that an existing directory gets
// exactly the attribute updates it needs and entries the schema does not
// mention stay untouched.
func TestTraverse_Success_Reconcile(t *testing.T) {
	t.Parallel()

	handler, fsHandler := newTestHandler(t, map[string]string{"/srv": "managed/\n    :mode 750\n"})
	require.NoError(t, fsHandler.CreateDirectory("/srv"))
	require.NoError(t, fsHandler.CreateDirectory("/srv/managed"))
	require.NoError(t, fsHandler.SetPermissions("/srv/managed", schema.Mode(0o555)))
	require.NoError(t, fsHandler.CreateDirectory("/srv/untracked"))
	require.NoError(t, fsHandler.SetPermissions("/srv/untracked", schema.Mode(0o555)))

	report, err := handler.Traverse(context.Background(), Params{Target: "/srv"})
	require.NoError(t, err)
	require.False(t, report.Failed())

	res, ok := report.Get("/srv/managed")
	require.True(t, ok)
	assert.Equal(t, OutcomeAlreadyMatches, res.Outcome)
	require.Len(t, res.Operations, 1)
	assert.Equal(t, OpSetPermissions, res.Operations[0].Kind)
	assert.Equal(t, schema.Mode(0o750), res.Operations[0].Mode)

	managed, err := fsHandler.Attributes("/srv/managed")
	require.NoError(t, err)
	assert.Equal(t, schema.Mode(0o750), managed.Mode)

	_, ok = report.Get("/srv/untracked")
	assert.False(t, ok, "unmatched names are skipped, not reported")
	untracked, err := fsHandler.Attributes("/srv/untracked")
	require.NoError(t, err)
	assert.Equal(t, schema.Mode(0o555), untracked.Mode)
}

// TestTraverse_Error_KindConflict tests a file standing where the schema
// wants a directory: the path conflicts, its subtree is skipped and the
// sibling is still produced.
func TestTraverse_Error_KindConflict(t *testing.T) {
	t.Parallel()

	handler, fsHandler := newTestHandler(t, map[string]string{
		"/srv": "docs/\n    guide/\nlogs/\n",
	})
	require.NoError(t, fsHandler.CreateDirectory("/srv"))
	require.NoError(t, fsHandler.CreateFile("/srv/docs", []byte("in the way")))

	report, err := handler.Traverse(context.Background(), Params{Target: "/srv"})
	require.NoError(t, err, "conflicts do not abort the run")
	assert.True(t, report.Failed())

	res, ok := report.Get("/srv/docs")
	require.True(t, ok)
	assert.Equal(t, OutcomeConflict, res.Outcome)
	assert.ErrorIs(t, res.Err, ErrConflict)
	assert.Empty(t, res.Operations)

	_, ok = report.Get("/srv/docs/guide")
	assert.False(t, ok)
	assert.False(t, fsHandler.Exists("/srv/docs/guide"))

	assert.True(t, fsHandler.IsDirectory("/srv/logs"))
}

// TestTraverse_Error_ContentConflict tests an existing file whose
// content differs from the prescribed source.
func TestTraverse_Error_ContentConflict(t *testing.T) {
	t.Parallel()

	handler, fsHandler := newTestHandler(t, map[string]string{
		"/srv": "motd\n    :source /resources/motd\n",
	})
	seedFile(t, fsHandler, "/resources/motd", "welcome\n")
	require.NoError(t, fsHandler.CreateDirectory("/srv"))
	require.NoError(t, fsHandler.CreateFile("/srv/motd", []byte("something else\n")))

	report, err := handler.Traverse(context.Background(), Params{Target: "/srv"})
	require.NoError(t, err)
	assert.True(t, report.Failed())

	res, ok := report.Get("/srv/motd")
	require.True(t, ok)
	assert.Equal(t, OutcomeConflict, res.Outcome)
	assert.ErrorIs(t, res.Err, ErrConflict)

	content, err := fsHandler.ReadFile("/srv/motd")
	require.NoError(t, err)
	assert.Equal(t, "something else\n", string(content), "existing content stays")
}

// TestTraverse_Success_ContentMatches tests an existing file already
// carrying the prescribed content.
func TestTraverse_Success_ContentMatches(t *testing.T) {
	t.Parallel()

	handler, fsHandler := newTestHandler(t, map[string]string{
		"/srv": "motd\n    :source /resources/motd\n",
	})
	seedFile(t, fsHandler, "/resources/motd", "welcome\n")
	require.NoError(t, fsHandler.CreateDirectory("/srv"))
	require.NoError(t, fsHandler.CreateFile("/srv/motd", []byte("welcome\n")))

	report, err := handler.Traverse(context.Background(), Params{Target: "/srv"})
	require.NoError(t, err)
	require.False(t, report.Failed())

	res, ok := report.Get("/srv/motd")
	require.True(t, ok)
	assert.Equal(t, OutcomeAlreadyMatches, res.Outcome)
	assert.Empty(t, res.Operations)
}

// TestTraverse_Success_LiteralSource tests the '=' source form carrying
// the file content itself, interpolated against the scope.
func TestTraverse_Success_LiteralSource(t *testing.T) {
	t.Parallel()

	const text = `
:let greeting = welcome

motd
    :source =${greeting} aboard
empty_file
    :source =
`
	handler, fsHandler := newTestHandler(t, map[string]string{"/srv": text})

	report, err := handler.Traverse(context.Background(), Params{Target: "/srv"})
	require.NoError(t, err)
	require.False(t, report.Failed())

	content, err := fsHandler.ReadFile("/srv/motd")
	require.NoError(t, err)
	assert.Equal(t, "welcome aboard", string(content))

	content, err = fsHandler.ReadFile("/srv/empty_file")
	require.NoError(t, err)
	assert.Empty(t, content)

	second, err := handler.Traverse(context.Background(), Params{Target: "/srv"})
	require.NoError(t, err)
	assert.False(t, second.Failed())
	assert.Empty(t, second.Operations())
}

// TestTraverse_Error_UndefinedVariable tests that a schema referencing
// an unknown variable aborts before anything is created.
func TestTraverse_Error_UndefinedVariable(t *testing.T) {
	t.Parallel()

	handler, fsHandler := newTestHandler(t, map[string]string{
		"/srv": "dir/\n    :owner $nobody_knows\n",
	})

	report, err := handler.Traverse(context.Background(), Params{Target: "/srv"})
	assert.ErrorIs(t, err, ErrUndefinedVariable)
	assert.Equal(t, 0, report.Len())
	assert.False(t, fsHandler.Exists("/srv"))
}

// TestTraverse_Error_LetScope tests that a :let stays invisible outside
// its directory.
func TestTraverse_Error_LetScope(t *testing.T) {
	t.Parallel()

	const text = `
alpha/
    :let who = somebody
beta/
    :owner $who
`
	handler, _ := newTestHandler(t, map[string]string{"/srv": text})

	_, err := handler.Traverse(context.Background(), Params{Target: "/srv"})
	assert.ErrorIs(t, err, ErrUndefinedVariable)
}

// TestTraverse_Success_LetMaterializes tests that a bound variable
// produces its value as an entry while unrelated existing names still
// match the same binding.
func TestTraverse_Success_LetMaterializes(t *testing.T) {
	t.Parallel()

	handler, fsHandler := newTestHandler(t, map[string]string{
		"/srv": ":let var = xxx\n\n$var/\n    created/\n",
	})
	require.NoError(t, fsHandler.CreateDirectory("/srv"))
	require.NoError(t, fsHandler.CreateDirectory("/srv/yyy"))

	report, err := handler.Traverse(context.Background(), Params{Target: "/srv"})
	require.NoError(t, err)
	require.False(t, report.Failed())

	assert.True(t, fsHandler.IsDirectory("/srv/xxx/created"), "the bound value materializes")
	assert.True(t, fsHandler.IsDirectory("/srv/yyy/created"), "the existing name rebinds")
}

// TestTraverse_Success_StaticOverLet tests a static entry claiming the
// name a bound variable would otherwise produce.
func TestTraverse_Success_StaticOverLet(t *testing.T) {
	t.Parallel()

	const text = `
:let var = xxx

$var/
    from_binder/
xxx/
    from_static/
`
	handler, fsHandler := newTestHandler(t, map[string]string{"/srv": text})

	_, err := handler.Traverse(context.Background(), Params{Target: "/srv"})
	require.NoError(t, err)

	assert.True(t, fsHandler.IsDirectory("/srv/xxx/from_static"))
	assert.False(t, fsHandler.Exists("/srv/xxx/from_binder"))
}

// TestTraverse_Success_StaticBeatsDynamic tests that an existing name
// admitted by both a static and a variable binding follows the static
// one, in either declaration order.
func TestTraverse_Success_StaticBeatsDynamic(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		text string
	}{
		{"StaticFirst", "fixed/\n    went_static/\n$variable/\n    went_variable/\n"},
		{"VariableFirst", "$variable/\n    went_variable/\nfixed/\n    went_static/\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			handler, fsHandler := newTestHandler(t, map[string]string{"/srv": tt.text})
			require.NoError(t, fsHandler.CreateDirectory("/srv"))
			require.NoError(t, fsHandler.CreateDirectory("/srv/fixed"))

			_, err := handler.Traverse(context.Background(), Params{Target: "/srv"})
			require.NoError(t, err)

			assert.True(t, fsHandler.IsDirectory("/srv/fixed/went_static"))
			assert.False(t, fsHandler.Exists("/srv/fixed/went_variable"))
		})
	}
}

// TestTraverse_Error_MultipleDynamic tests an existing name admitted by
// two variable bindings: the entry conflicts and the run carries on.
func TestTraverse_Error_MultipleDynamic(t *testing.T) {
	t.Parallel()

	handler, fsHandler := newTestHandler(t, map[string]string{
		"/srv": "$alpha/\n    from_alpha/\n$beta/\n    from_beta/\nok/\n",
	})
	require.NoError(t, fsHandler.CreateDirectory("/srv"))
	require.NoError(t, fsHandler.CreateDirectory("/srv/existing"))

	report, err := handler.Traverse(context.Background(), Params{Target: "/srv"})
	require.NoError(t, err)
	assert.True(t, report.Failed())

	res, ok := report.Get("/srv/existing")
	require.True(t, ok)
	assert.Equal(t, OutcomeConflict, res.Outcome)
	assert.ErrorIs(t, res.Err, ErrMultipleMatches)
	assert.ErrorContains(t, res.Err, "$alpha")
	assert.ErrorContains(t, res.Err, "$beta")
	assert.False(t, fsHandler.Exists("/srv/existing/from_alpha"))

	assert.True(t, fsHandler.IsDirectory("/srv/ok"))
}

// TestTraverse_Error_DuplicateStatic tests the same static name arriving
// from a node and a definition it uses.
func TestTraverse_Error_DuplicateStatic(t *testing.T) {
	t.Parallel()

	handler, _ := newTestHandler(t, map[string]string{
		"/srv": ":def extra/\n    dup/\n:use extra\n\ndup/\n",
	})

	_, err := handler.Traverse(context.Background(), Params{Target: "/srv"})
	assert.ErrorIs(t, err, ErrMultipleMatches)
	assert.ErrorContains(t, err, "static")
}

// TestTraverse_Success_Use tests merging a definition into a node:
// entries combine and the node's own attributes win over the
// definition's.
func TestTraverse_Success_Use(t *testing.T) {
	t.Parallel()

	const text = `
:def base/
    :owner admin
    :mode 700
    common/

project/
    :use base
    :owner lead
    own/
`
	handler, fsHandler := newTestHandler(t, map[string]string{"/srv": text})

	report, err := handler.Traverse(context.Background(), Params{Target: "/srv"})
	require.NoError(t, err)
	require.False(t, report.Failed())

	attrs, err := fsHandler.Attributes("/srv/project")
	require.NoError(t, err)
	assert.Equal(t, "lead", attrs.Owner, "the node's own attribute wins")
	assert.Equal(t, schema.Mode(0o700), attrs.Mode, "the definition supplies what the node lacks")

	assert.True(t, fsHandler.IsDirectory("/srv/project/own"))
	assert.True(t, fsHandler.IsDirectory("/srv/project/common"))
}

// TestTraverse_Success_DefScope tests that a definition's children see
// the definition's own variables, not the host's.
func TestTraverse_Success_DefScope(t *testing.T) {
	t.Parallel()

	const text = `
:def base/
    :let tag = from_def
    common/
        :owner $tag

host/
    :use base
`
	handler, fsHandler := newTestHandler(t, map[string]string{"/srv": text})

	_, err := handler.Traverse(context.Background(), Params{Target: "/srv"})
	require.NoError(t, err)

	attrs, err := fsHandler.Attributes("/srv/host/common")
	require.NoError(t, err)
	assert.Equal(t, "from_def", attrs.Owner)
}

// TestTraverse_Error_NoDefinition tests a :use with nothing to refer to.
func TestTraverse_Error_NoDefinition(t *testing.T) {
	t.Parallel()

	handler, fsHandler := newTestHandler(t, map[string]string{"/srv": "x/\n    :use missing\n"})

	_, err := handler.Traverse(context.Background(), Params{Target: "/srv"})
	assert.ErrorIs(t, err, ErrNoDefinition)
	assert.False(t, fsHandler.Exists("/srv"), "validation runs before any creation")
}

const linkFarmSchema = `
$name/ -> /storage/$PATH
    :match [a-z]+
    :group adm
`

const storageSchema = `
$any/
    :match [a-z]+
    cache/
`

// TestTraverse_Success_SymlinkAbsolute tests planting a link whose
// target lives in another stem: the target is produced through its own
// schema first, restricted to the path itself, and the link node's
// attributes apply to the target.
func TestTraverse_Success_SymlinkAbsolute(t *testing.T) {
	t.Parallel()

	handler, fsHandler := newTestHandler(t, map[string]string{
		"/links":   linkFarmSchema,
		"/storage": storageSchema,
	})

	report, err := handler.Traverse(context.Background(), Params{Target: "/links/alpha"})
	require.NoError(t, err)
	require.False(t, report.Failed())

	require.True(t, fsHandler.IsLink("/links/alpha"))
	target, err := fsHandler.ReadLink("/links/alpha")
	require.NoError(t, err)
	assert.Equal(t, "/storage/alpha", target)

	attrs, err := fsHandler.Attributes("/storage/alpha")
	require.NoError(t, err)
	assert.Equal(t, "adm", attrs.Group, "the link node's attributes land on the target")

	assert.False(t, fsHandler.Exists("/storage/alpha/cache"),
		"restricted planting stops at the target path")

	second, err := handler.Traverse(context.Background(), Params{Target: "/links/alpha"})
	require.NoError(t, err)
	assert.False(t, second.Failed())
	assert.Empty(t, second.Operations())
}

// TestTraverse_Error_LinkTargetConflict tests an existing link pointing
// somewhere else than the schema prescribes.
func TestTraverse_Error_LinkTargetConflict(t *testing.T) {
	t.Parallel()

	handler, fsHandler := newTestHandler(t, map[string]string{
		"/links":   linkFarmSchema,
		"/storage": storageSchema,
	})
	require.NoError(t, fsHandler.CreateDirectory("/links"))
	require.NoError(t, fsHandler.CreateSymlink("/links/alpha", "/storage/other"))

	report, err := handler.Traverse(context.Background(), Params{Target: "/links/alpha"})
	require.NoError(t, err)
	assert.True(t, report.Failed())

	res, ok := report.Get("/links/alpha")
	require.True(t, ok)
	assert.Equal(t, OutcomeConflict, res.Outcome)
	assert.ErrorIs(t, res.Err, ErrConflict)

	target, err := fsHandler.ReadLink("/links/alpha")
	require.NoError(t, err)
	assert.Equal(t, "/storage/other", target, "the existing link stays")
}

// TestTraverse_Error_LinkTargetNoSchema tests a link target no stem
// covers.
func TestTraverse_Error_LinkTargetNoSchema(t *testing.T) {
	t.Parallel()

	handler, _ := newTestHandler(t, map[string]string{
		"/links": "data/ -> /elsewhere/data\n",
	})

	_, err := handler.Traverse(context.Background(), Params{Target: "/links"})
	assert.ErrorIs(t, err, config.ErrNoStemForPath)
}

// TestTraverse_Error_SymlinkCycle tests two links whose schemas point at
// each other: the chain is cut and reported instead of looping forever.
func TestTraverse_Error_SymlinkCycle(t *testing.T) {
	t.Parallel()

	handler, _ := newTestHandler(t, map[string]string{
		"/a": "link/ -> /b/back\n",
		"/b": "back/ -> /a/link\n",
	})

	report, err := handler.Traverse(context.Background(), Params{Target: "/a"})
	require.NoError(t, err)
	assert.True(t, report.Failed())

	res, ok := report.Get("/a/link")
	require.True(t, ok)
	assert.ErrorIs(t, res.Err, ErrSymlinkCycle)
}

// TestTraverse_Success_SymlinkRelative tests a plain relative link.
func TestTraverse_Success_SymlinkRelative(t *testing.T) {
	t.Parallel()

	handler, fsHandler := newTestHandler(t, map[string]string{
		"/srv": "versions/\n    current/ -> 1.0\n",
	})

	report, err := handler.Traverse(context.Background(), Params{Target: "/srv"})
	require.NoError(t, err)
	require.False(t, report.Failed())

	require.True(t, fsHandler.IsLink("/srv/versions/current"))
	target, err := fsHandler.ReadLink("/srv/versions/current")
	require.NoError(t, err)
	assert.Equal(t, "1.0", target)

	second, err := handler.Traverse(context.Background(), Params{Target: "/srv"})
	require.NoError(t, err)
	assert.Empty(t, second.Operations())
}

// TestTraverse_Error_RelativeLink tests a relative target on a node
// carrying more than the link itself.
func TestTraverse_Error_RelativeLink(t *testing.T) {
	t.Parallel()

	handler, _ := newTestHandler(t, map[string]string{
		"/srv": "current/ -> 1.0\n    :owner admin\n",
	})

	_, err := handler.Traverse(context.Background(), Params{Target: "/srv"})
	assert.ErrorIs(t, err, ErrRelativeLink)
}

// TestTraverse_Success_FileSymlink tests a file entry that is a link to
// a file produced by another stem's schema.
func TestTraverse_Success_FileSymlink(t *testing.T) {
	t.Parallel()

	handler, fsHandler := newTestHandler(t, map[string]string{
		"/app":      "current -> /releases/stable\n",
		"/releases": "stable\n    :source /resources/build\n",
	})
	seedFile(t, fsHandler, "/resources/build", "binary-payload")

	report, err := handler.Traverse(context.Background(), Params{Target: "/app"})
	require.NoError(t, err)
	require.False(t, report.Failed())

	require.True(t, fsHandler.IsLink("/app/current"))
	content, err := fsHandler.ReadFile("/app/current")
	require.NoError(t, err)
	assert.Equal(t, "binary-payload", string(content), "reads through the link")
}

// TestTraverse_Success_Restricted tests restricted extent: only the
// target chain is produced and conflicting siblings are never looked at.
func TestTraverse_Success_Restricted(t *testing.T) {
	t.Parallel()

	handler, fsHandler := newTestHandler(t, map[string]string{
		"/data": "$set/\n    $item/\n        payload/\n",
	})
	require.NoError(t, fsHandler.CreateDirectory("/data"))
	require.NoError(t, fsHandler.CreateFile("/data/intruder", []byte("x")))

	report, err := handler.Traverse(context.Background(), Params{
		Target: "/data/main/one",
		Extent: ExtentRestricted,
	})
	require.NoError(t, err)
	require.False(t, report.Failed())

	assert.True(t, fsHandler.IsDirectory("/data/main/one"))
	assert.False(t, fsHandler.Exists("/data/main/one/payload"), "restricted stops at the target")
	_, ok := report.Get("/data/intruder")
	assert.False(t, ok, "siblings are not considered")
}

// TestTraverse_Success_AvoidPattern tests :avoid carving names out of a
// broad :match so existing entries land on distinct bindings.
func TestTraverse_Success_AvoidPattern(t *testing.T) {
	t.Parallel()

	const text = `
$animal/
    :match .*
    :avoid .*shed
    FOR_ANIMAL/
$building/
    :match .*shed
    FOR_BUILDING/
`
	handler, fsHandler := newTestHandler(t, map[string]string{"/farm": text})
	require.NoError(t, fsHandler.CreateDirectory("/farm"))
	for _, name := range []string{"cow", "chicken", "shed", "cow_shed"} {
		require.NoError(t, fsHandler.CreateDirectory("/farm/"+name))
	}

	report, err := handler.Traverse(context.Background(), Params{Target: "/farm"})
	require.NoError(t, err)
	require.False(t, report.Failed())

	assert.True(t, fsHandler.Exists("/farm/cow/FOR_ANIMAL"))
	assert.True(t, fsHandler.Exists("/farm/chicken/FOR_ANIMAL"))
	assert.True(t, fsHandler.Exists("/farm/shed/FOR_BUILDING"))
	assert.True(t, fsHandler.Exists("/farm/cow_shed/FOR_BUILDING"))
	assert.False(t, fsHandler.Exists("/farm/shed/FOR_ANIMAL"))
}

// TestTraverse_Success_Rebinding tests a nested binding reusing a bound
// name: without a pattern the inner binding captures new names freely,
// with :match $var it sticks to the value already bound.
func TestTraverse_Success_Rebinding(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name       string
		text       string
		wantRebind bool
	}{
		{"Free", "$var/\n    $var/\n        inner/\n", true},
		{"Pinned", "$var/\n    $var/\n        :match $var\n        inner/\n", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			handler, fsHandler := newTestHandler(t, map[string]string{"/srv": tt.text})
			require.NoError(t, fsHandler.CreateDirectory("/srv"))
			require.NoError(t, fsHandler.CreateDirectory("/srv/a"))
			require.NoError(t, fsHandler.CreateDirectory("/srv/a/x"))

			_, err := handler.Traverse(context.Background(), Params{Target: "/srv"})
			require.NoError(t, err)

			assert.True(t, fsHandler.Exists("/srv/a/a/inner"), "the bound value materializes")
			assert.Equal(t, tt.wantRebind, fsHandler.Exists("/srv/a/x/inner"))
		})
	}
}

// TestTraverse_Error_ContextCanceled tests that cancellation stops the
// run before it touches anything else.
func TestTraverse_Error_ContextCanceled(t *testing.T) {
	t.Parallel()

	handler, _ := newTestHandler(t, map[string]string{"/srv": "dir/\n"})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	report, err := handler.Traverse(ctx, Params{Target: "/srv"})
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 0, report.Len())
}

// TestTraverse_Success_Deterministic tests that identical runs over
// fresh filesystems visit paths in the same order.
func TestTraverse_Success_Deterministic(t *testing.T) {
	t.Parallel()

	const text = `
:let size = small

web/
    static/
    media/
$tier/
    :match [a-z]+
    conf
        :source /resources/conf
`
	run := func() []string {
		handler, fsHandler := newTestHandler(t, map[string]string{"/srv": text})
		seedFile(t, fsHandler, "/resources/conf", "k=v\n")
		report, err := handler.Traverse(context.Background(), Params{
			Target: "/srv",
			Vars:   map[string]string{"tier": "gold"},
		})
		require.NoError(t, err)

		return reportPaths(report)
	}

	first := run()
	second := run()
	assert.Equal(t, first, second)
	assert.Contains(t, first, "/srv/gold/conf")
}

// TestRunPushLink_Success tests the link chain guard: revisits and
// chains beyond MaxLinkDepth are refused.
func TestRunPushLink_Success(t *testing.T) {
	t.Parallel()

	r := &run{}
	assert.True(t, r.pushLink("/a/1"))
	assert.False(t, r.pushLink("/a/1"), "revisit refused")
	r.popLink()
	assert.True(t, r.pushLink("/a/1"), "pop releases the name")

	r = &run{}
	for i := 0; i < MaxLinkDepth; i++ {
		require.True(t, r.pushLink(fmt.Sprintf("/a/%d", i)))
	}
	assert.False(t, r.pushLink("/a/overflow"))
}
