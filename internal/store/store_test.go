package store

import (
	"context"
	"errors"
	"os"
	"testing"

	"github.com/starford/gebo/internal/apperr"
	"github.com/starford/gebo/internal/models"
)

func testDB(t *testing.T) *DB {
	t.Helper()
	dbFile, err := os.CreateTemp("", "gebo-store-test-*.db")
	if err != nil {
		t.Fatal(err)
	}
	dbFile.Close()
	t.Cleanup(func() { os.Remove(dbFile.Name()) })

	db, err := Open(dbFile.Name())
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func mkNode(t *testing.T, db *DB, id string, typ models.NodeType, parent *models.Node) *models.Node {
	t.Helper()
	path := []string{id}
	if parent != nil {
		path = append(append([]string{}, parent.FilePath.Path...), id)
	}
	n := &models.Node{
		NodeID:   id,
		Type:     typ,
		Title:    id,
		FilePath: models.NodePath{Path: path, Children: []string{}},
	}
	if typ == models.NodeTypeFolder {
		n.Folder = &models.FolderMeta{ViewType: "grid"}
	}
	if err := db.CreateNode(context.Background(), n); err != nil {
		t.Fatalf("CreateNode(%s): %v", id, err)
	}
	return n
}

func mkAnchor(t *testing.T, db *DB, id, nodeID string, ext models.Extent) *models.Anchor {
	t.Helper()
	a := &models.Anchor{AnchorID: id, NodeID: nodeID, Extent: ext}
	if err := db.CreateAnchor(context.Background(), a); err != nil {
		t.Fatalf("CreateAnchor(%s): %v", id, err)
	}
	return a
}

func mkLink(t *testing.T, db *DB, id string, a1, a2 *models.Anchor) *models.Link {
	t.Helper()
	l := &models.Link{
		LinkID:        id,
		Anchor1ID:     a1.AnchorID,
		Anchor1NodeID: a1.NodeID,
		Anchor2ID:     a2.AnchorID,
		Anchor2NodeID: a2.NodeID,
	}
	if err := db.CreateLink(context.Background(), l); err != nil {
		t.Fatalf("CreateLink(%s): %v", id, err)
	}
	return l
}

func TestCreateAndGetNode(t *testing.T) {
	db := testDB(t)
	ctx := context.Background()

	n := &models.Node{
		NodeID:        "text.1",
		Type:          models.NodeTypeText,
		Title:         "Hello",
		Content:       "<p>Hello world</p>",
		FilePath:      models.NodePath{Path: []string{"text.1"}, Children: []string{}},
		Collaborators: []string{"ada", "grace"},
	}
	if err := db.CreateNode(ctx, n); err != nil {
		t.Fatalf("CreateNode: %v", err)
	}

	got, err := db.GetNode(ctx, "text.1")
	if err != nil {
		t.Fatalf("GetNode: %v", err)
	}
	if got.Title != "Hello" || got.Content != "<p>Hello world</p>" {
		t.Errorf("node = %+v", got)
	}
	if len(got.Collaborators) != 2 || got.Collaborators[0] != "ada" {
		t.Errorf("collaborators = %v", got.Collaborators)
	}
	if got.DateCreated.IsZero() {
		t.Error("date created not set")
	}
}

func TestCreateNode_Duplicate(t *testing.T) {
	db := testDB(t)
	n := mkNode(t, db, "text.1", models.NodeTypeText, nil)
	err := db.CreateNode(context.Background(), n)
	if !errors.Is(err, apperr.ErrAlreadyExists) {
		t.Errorf("duplicate create = %v, want ErrAlreadyExists", err)
	}
}

func TestCreateNode_InvalidRejected(t *testing.T) {
	db := testDB(t)
	n := &models.Node{
		NodeID:   "text.1",
		Type:     models.NodeTypeText,
		FilePath: models.NodePath{Path: []string{"somewhere.else"}},
	}
	err := db.CreateNode(context.Background(), n)
	if !errors.Is(err, apperr.ErrValidation) {
		t.Errorf("invalid node = %v, want ErrValidation", err)
	}
}

func TestGetNode_NotFound(t *testing.T) {
	db := testDB(t)
	_, err := db.GetNode(context.Background(), "text.missing")
	if !errors.Is(err, apperr.ErrNotFound) {
		t.Errorf("missing node = %v, want ErrNotFound", err)
	}
}

func TestRecipeAndFolderMetaRoundTrip(t *testing.T) {
	db := testDB(t)
	ctx := context.Background()

	r := &models.Node{
		NodeID:   "recipe.1",
		Type:     models.NodeTypeRecipe,
		Title:    "Soup",
		FilePath: models.NodePath{Path: []string{"recipe.1"}, Children: []string{}},
		Recipe: &models.RecipeMeta{
			DescriptionID: "text.d",
			IngredientsID: "text.i",
			StepsID:       "text.s",
			Serving:       4,
			Cuisine:       "french",
			Time:          45,
		},
	}
	if err := db.CreateNode(ctx, r); err != nil {
		t.Fatalf("create recipe: %v", err)
	}
	got, err := db.GetNode(ctx, "recipe.1")
	if err != nil {
		t.Fatal(err)
	}
	if got.Recipe == nil || got.Recipe.StepsID != "text.s" || got.Recipe.Serving != 4 {
		t.Errorf("recipe meta = %+v", got.Recipe)
	}
	if got.Folder != nil {
		t.Error("recipe node grew folder meta")
	}

	f := mkNode(t, db, "folder.1", models.NodeTypeFolder, nil)
	got, err = db.GetNode(ctx, f.NodeID)
	if err != nil {
		t.Fatal(err)
	}
	if got.Folder == nil || got.Folder.ViewType != "grid" {
		t.Errorf("folder meta = %+v", got.Folder)
	}
}

func TestChildrenAndRoots(t *testing.T) {
	db := testDB(t)
	ctx := context.Background()

	folder := mkNode(t, db, "folder.1", models.NodeTypeFolder, nil)
	mkNode(t, db, "text.b", models.NodeTypeText, folder)
	mkNode(t, db, "text.a", models.NodeTypeText, folder)

	children, err := db.GetChildren(ctx, folder.NodeID)
	if err != nil {
		t.Fatalf("GetChildren: %v", err)
	}
	// Child order is insertion order, not alphabetical.
	if len(children) != 2 || children[0].NodeID != "text.b" || children[1].NodeID != "text.a" {
		t.Errorf("children = %v", nodeIDs(children))
	}

	roots, err := db.GetRoots(ctx)
	if err != nil {
		t.Fatalf("GetRoots: %v", err)
	}
	if len(roots) != 1 || roots[0].NodeID != "folder.1" {
		t.Errorf("roots = %v", nodeIDs(roots))
	}
}

func TestSearchNodes(t *testing.T) {
	db := testDB(t)
	ctx := context.Background()

	for _, title := range []string{"Tomato Soup", "Pumpkin soup", "Bread"} {
		n := &models.Node{
			NodeID:   "text." + title,
			Type:     models.NodeTypeText,
			Title:    title,
			FilePath: models.NodePath{Path: []string{"text." + title}, Children: []string{}},
		}
		if err := db.CreateNode(ctx, n); err != nil {
			t.Fatal(err)
		}
	}

	got, err := db.SearchNodes(ctx, "soup")
	if err != nil {
		t.Fatalf("SearchNodes: %v", err)
	}
	if len(got) != 2 {
		t.Errorf("matches = %v, want both soups", nodeIDs(got))
	}
}

func TestUpdateNode(t *testing.T) {
	db := testDB(t)
	ctx := context.Background()
	mkNode(t, db, "text.1", models.NodeTypeText, nil)

	got, err := db.UpdateNode(ctx, "text.1", []models.Property{
		{Field: models.FieldTitle, Value: "Renamed"},
		{Field: models.FieldContent, Value: "<p>new</p>"},
	})
	if err != nil {
		t.Fatalf("UpdateNode: %v", err)
	}
	if got.Title != "Renamed" || got.Content != "<p>new</p>" {
		t.Errorf("updated = %+v", got)
	}

	reread, err := db.GetNode(ctx, "text.1")
	if err != nil {
		t.Fatal(err)
	}
	if reread.Title != "Renamed" {
		t.Errorf("persisted title = %q", reread.Title)
	}
}

func TestUpdateNode_BadProperties(t *testing.T) {
	db := testDB(t)
	ctx := context.Background()
	mkNode(t, db, "text.1", models.NodeTypeText, nil)

	_, err := db.UpdateNode(ctx, "text.1", []models.Property{{Field: "color", Value: "red"}})
	if !errors.Is(err, apperr.ErrValidation) {
		t.Errorf("unknown property = %v, want ErrValidation", err)
	}
	_, err = db.UpdateNode(ctx, "text.1", []models.Property{{Field: models.FieldViewType, Value: "list"}})
	if !errors.Is(err, apperr.ErrValidation) {
		t.Errorf("viewType on text node = %v, want ErrValidation", err)
	}
	_, err = db.UpdateNode(ctx, "text.1", []models.Property{{Field: models.FieldTitle, Value: 42}})
	if !errors.Is(err, apperr.ErrValidation) {
		t.Errorf("numeric title = %v, want ErrValidation", err)
	}
}

func TestUpdateNode_JSONNumbers(t *testing.T) {
	db := testDB(t)
	ctx := context.Background()

	r := &models.Node{
		NodeID:   "recipe.1",
		Type:     models.NodeTypeRecipe,
		FilePath: models.NodePath{Path: []string{"recipe.1"}, Children: []string{}},
		Recipe:   &models.RecipeMeta{DescriptionID: "a", IngredientsID: "b", StepsID: "c"},
	}
	if err := db.CreateNode(ctx, r); err != nil {
		t.Fatal(err)
	}

	// Numbers arriving through JSON decode as float64.
	got, err := db.UpdateNode(ctx, "recipe.1", []models.Property{
		{Field: models.FieldServing, Value: float64(6)},
		{Field: models.FieldTime, Value: 30},
	})
	if err != nil {
		t.Fatalf("UpdateNode: %v", err)
	}
	if got.Recipe.Serving != 6 || got.Recipe.Time != 30 {
		t.Errorf("recipe meta = %+v", got.Recipe)
	}
}

func TestMoveNode(t *testing.T) {
	db := testDB(t)
	ctx := context.Background()

	src := mkNode(t, db, "folder.src", models.NodeTypeFolder, nil)
	dst := mkNode(t, db, "folder.dst", models.NodeTypeFolder, nil)
	moved := mkNode(t, db, "folder.mid", models.NodeTypeFolder, src)
	leaf := mkNode(t, db, "text.leaf", models.NodeTypeText, moved)

	got, err := db.MoveNode(ctx, moved.NodeID, dst.NodeID)
	if err != nil {
		t.Fatalf("MoveNode: %v", err)
	}
	if want := []string{"folder.dst", "folder.mid"}; !equalStrings(got.FilePath.Path, want) {
		t.Errorf("moved path = %v, want %v", got.FilePath.Path, want)
	}

	// The whole subtree is rebased.
	subLeaf, err := db.GetNode(ctx, leaf.NodeID)
	if err != nil {
		t.Fatal(err)
	}
	if want := []string{"folder.dst", "folder.mid", "text.leaf"}; !equalStrings(subLeaf.FilePath.Path, want) {
		t.Errorf("leaf path = %v, want %v", subLeaf.FilePath.Path, want)
	}

	oldParent, _ := db.GetNode(ctx, src.NodeID)
	if len(oldParent.FilePath.Children) != 0 {
		t.Errorf("old parent children = %v", oldParent.FilePath.Children)
	}
	newParent, _ := db.GetNode(ctx, dst.NodeID)
	if len(newParent.FilePath.Children) != 1 || newParent.FilePath.Children[0] != "folder.mid" {
		t.Errorf("new parent children = %v", newParent.FilePath.Children)
	}
}

func TestMoveNode_CycleRejected(t *testing.T) {
	db := testDB(t)
	ctx := context.Background()

	top := mkNode(t, db, "folder.top", models.NodeTypeFolder, nil)
	inner := mkNode(t, db, "folder.inner", models.NodeTypeFolder, top)

	_, err := db.MoveNode(ctx, top.NodeID, inner.NodeID)
	if !errors.Is(err, apperr.ErrValidation) {
		t.Errorf("move into own subtree = %v, want ErrValidation", err)
	}
}

func TestDeleteNode_CascadesSubtree(t *testing.T) {
	db := testDB(t)
	ctx := context.Background()

	folder := mkNode(t, db, "folder.1", models.NodeTypeFolder, nil)
	inner := mkNode(t, db, "text.inner", models.NodeTypeText, folder)
	outside := mkNode(t, db, "text.outside", models.NodeTypeText, nil)

	aInner := mkAnchor(t, db, "anchor.in", inner.NodeID, &models.TextExtent{Text: "x", StartCharacter: 1, EndCharacter: 1})
	aOut := mkAnchor(t, db, "anchor.out", outside.NodeID, &models.TextExtent{Text: "y", StartCharacter: 1, EndCharacter: 1})
	mkLink(t, db, "link.cross", aInner, aOut)

	if err := db.DeleteNode(ctx, folder.NodeID); err != nil {
		t.Fatalf("DeleteNode: %v", err)
	}

	if _, err := db.GetNode(ctx, inner.NodeID); !errors.Is(err, apperr.ErrNotFound) {
		t.Errorf("inner node survived: %v", err)
	}
	if _, err := db.GetAnchor(ctx, aInner.AnchorID); !errors.Is(err, apperr.ErrNotFound) {
		t.Errorf("inner anchor survived: %v", err)
	}
	if _, err := db.GetLink(ctx, "link.cross"); !errors.Is(err, apperr.ErrNotFound) {
		t.Errorf("cross link survived: %v", err)
	}
	// The far side of the link stays.
	if _, err := db.GetAnchor(ctx, aOut.AnchorID); err != nil {
		t.Errorf("outside anchor deleted: %v", err)
	}
	if _, err := db.GetNode(ctx, outside.NodeID); err != nil {
		t.Errorf("outside node deleted: %v", err)
	}
}

func TestCreateAnchor_Validation(t *testing.T) {
	db := testDB(t)
	ctx := context.Background()
	mkNode(t, db, "text.1", models.NodeTypeText, nil)

	err := db.CreateAnchor(ctx, &models.Anchor{AnchorID: "", NodeID: "text.1"})
	if !errors.Is(err, apperr.ErrValidation) {
		t.Errorf("empty anchor id = %v, want ErrValidation", err)
	}

	err = db.CreateAnchor(ctx, &models.Anchor{
		AnchorID: "anchor.1",
		NodeID:   "text.1",
		Extent:   &models.TextExtent{Text: "abc", StartCharacter: 0, EndCharacter: 9},
	})
	if !errors.Is(err, apperr.ErrValidation) {
		t.Errorf("bad extent = %v, want ErrValidation", err)
	}

	err = db.CreateAnchor(ctx, &models.Anchor{AnchorID: "anchor.1", NodeID: "text.missing"})
	if !errors.Is(err, apperr.ErrNotFound) {
		t.Errorf("anchor on missing node = %v, want ErrNotFound", err)
	}
}

func TestAnchorsByNodeID_InsertionOrder(t *testing.T) {
	db := testDB(t)
	ctx := context.Background()
	mkNode(t, db, "text.1", models.NodeTypeText, nil)

	mkAnchor(t, db, "anchor.z", "text.1", &models.TextExtent{Text: "a", StartCharacter: 1, EndCharacter: 1})
	mkAnchor(t, db, "anchor.a", "text.1", &models.TextExtent{Text: "b", StartCharacter: 3, EndCharacter: 3})

	got, err := db.GetAnchorsByNodeID(ctx, "text.1")
	if err != nil {
		t.Fatalf("GetAnchorsByNodeID: %v", err)
	}
	if len(got) != 2 || got[0].AnchorID != "anchor.z" || got[1].AnchorID != "anchor.a" {
		t.Errorf("order = %v", anchorIDs(got))
	}
}

func TestUpdateExtent(t *testing.T) {
	db := testDB(t)
	ctx := context.Background()
	mkNode(t, db, "text.1", models.NodeTypeText, nil)
	mkAnchor(t, db, "anchor.1", "text.1", &models.TextExtent{Text: "old", StartCharacter: 1, EndCharacter: 3})

	err := db.UpdateExtent(ctx, "anchor.1", &models.TextExtent{Text: "newer", StartCharacter: 5, EndCharacter: 9})
	if err != nil {
		t.Fatalf("UpdateExtent: %v", err)
	}
	got, err := db.GetAnchor(ctx, "anchor.1")
	if err != nil {
		t.Fatal(err)
	}
	te, _ := got.TextExtent()
	if te == nil || te.Text != "newer" || te.StartCharacter != 5 {
		t.Errorf("extent = %+v", te)
	}

	// Malformed extents never reach the database.
	err = db.UpdateExtent(ctx, "anchor.1", &models.TextExtent{Text: "x", StartCharacter: 4, EndCharacter: 2})
	if !errors.Is(err, apperr.ErrValidation) {
		t.Errorf("bad extent = %v, want ErrValidation", err)
	}
	err = db.UpdateExtent(ctx, "anchor.missing", &models.TextExtent{Text: "x", StartCharacter: 0, EndCharacter: 0})
	if !errors.Is(err, apperr.ErrNotFound) {
		t.Errorf("missing anchor = %v, want ErrNotFound", err)
	}
}

func TestDeleteAnchors(t *testing.T) {
	db := testDB(t)
	ctx := context.Background()
	mkNode(t, db, "text.1", models.NodeTypeText, nil)
	mkAnchor(t, db, "anchor.1", "text.1", nil)

	if err := db.DeleteAnchors(ctx); err != nil {
		t.Errorf("empty delete = %v, want nil", err)
	}
	if err := db.DeleteAnchors(ctx, "anchor.1", "anchor.unknown"); err != nil {
		t.Fatalf("DeleteAnchors: %v", err)
	}
	if _, err := db.GetAnchor(ctx, "anchor.1"); !errors.Is(err, apperr.ErrNotFound) {
		t.Errorf("anchor survived: %v", err)
	}
}

func TestCreateLink_Validation(t *testing.T) {
	db := testDB(t)
	ctx := context.Background()
	a := mkNode(t, db, "text.a", models.NodeTypeText, nil)
	b := mkNode(t, db, "text.b", models.NodeTypeText, nil)
	a1 := mkAnchor(t, db, "anchor.1", a.NodeID, nil)
	a2 := mkAnchor(t, db, "anchor.2", b.NodeID, nil)

	err := db.CreateLink(ctx, &models.Link{LinkID: "link.1", Anchor1ID: a1.AnchorID, Anchor2ID: ""})
	if !errors.Is(err, apperr.ErrValidation) {
		t.Errorf("empty endpoint = %v, want ErrValidation", err)
	}

	err = db.CreateLink(ctx, &models.Link{
		LinkID: "link.1", Anchor1ID: a1.AnchorID, Anchor1NodeID: a.NodeID,
		Anchor2ID: "anchor.ghost", Anchor2NodeID: b.NodeID,
	})
	if !errors.Is(err, apperr.ErrNotFound) {
		t.Errorf("missing endpoint = %v, want ErrNotFound", err)
	}

	err = db.CreateLink(ctx, &models.Link{
		LinkID: "link.1", Anchor1ID: a1.AnchorID, Anchor1NodeID: b.NodeID,
		Anchor2ID: a2.AnchorID, Anchor2NodeID: b.NodeID,
	})
	if !errors.Is(err, apperr.ErrValidation) {
		t.Errorf("node id mismatch = %v, want ErrValidation", err)
	}
}

func TestLinksByAnchor(t *testing.T) {
	db := testDB(t)
	ctx := context.Background()
	a := mkNode(t, db, "text.a", models.NodeTypeText, nil)
	b := mkNode(t, db, "text.b", models.NodeTypeText, nil)
	a1 := mkAnchor(t, db, "anchor.1", a.NodeID, nil)
	a2 := mkAnchor(t, db, "anchor.2", b.NodeID, nil)
	a3 := mkAnchor(t, db, "anchor.3", b.NodeID, nil)
	mkLink(t, db, "link.first", a1, a2)
	mkLink(t, db, "link.second", a3, a1)

	got, err := db.GetLinksByAnchorID(ctx, a1.AnchorID)
	if err != nil {
		t.Fatalf("GetLinksByAnchorID: %v", err)
	}
	// Oldest first, regardless of which side the anchor is on.
	if len(got) != 2 || got[0].LinkID != "link.first" || got[1].LinkID != "link.second" {
		t.Errorf("links = %v", linkIDs(got))
	}

	all, err := db.GetLinksByAnchorIDs(ctx, []string{a1.AnchorID, a2.AnchorID})
	if err != nil {
		t.Fatalf("GetLinksByAnchorIDs: %v", err)
	}
	if len(all) != 2 {
		t.Errorf("combined links = %v, want no duplicates", linkIDs(all))
	}

	none, err := db.GetLinksByAnchorIDs(ctx, nil)
	if err != nil || none != nil {
		t.Errorf("empty query = %v, %v", none, err)
	}
}

func TestDeleteLinksByNodeID(t *testing.T) {
	db := testDB(t)
	ctx := context.Background()
	a := mkNode(t, db, "text.a", models.NodeTypeText, nil)
	b := mkNode(t, db, "text.b", models.NodeTypeText, nil)
	c := mkNode(t, db, "text.c", models.NodeTypeText, nil)
	a1 := mkAnchor(t, db, "anchor.1", a.NodeID, nil)
	a2 := mkAnchor(t, db, "anchor.2", b.NodeID, nil)
	a3 := mkAnchor(t, db, "anchor.3", c.NodeID, nil)
	mkLink(t, db, "link.ab", a1, a2)
	mkLink(t, db, "link.bc", a2, a3)

	if err := db.DeleteLinksByNodeID(ctx, b.NodeID); err != nil {
		t.Fatalf("DeleteLinksByNodeID: %v", err)
	}
	for _, id := range []string{"link.ab", "link.bc"} {
		if _, err := db.GetLink(ctx, id); !errors.Is(err, apperr.ErrNotFound) {
			t.Errorf("link %s survived: %v", id, err)
		}
	}
}

func nodeIDs(nodes []*models.Node) []string {
	out := make([]string, len(nodes))
	for i, n := range nodes {
		out[i] = n.NodeID
	}
	return out
}

func anchorIDs(anchors []*models.Anchor) []string {
	out := make([]string, len(anchors))
	for i, a := range anchors {
		out[i] = a.AnchorID
	}
	return out
}

func linkIDs(links []*models.Link) []string {
	out := make([]string, len(links))
	for i, l := range links {
		out[i] = l.LinkID
	}
	return out
}

func equalStrings(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
