package mcpserver

// LinkingModelContract describes the canonical anchor and link model that
// LLM consumers should follow when addressing text selections.
const LinkingModelContract = `# Gebo Linking Model Contract

Gebo stores hypermedia nodes and bidirectional links between selections
inside them. Every tool that addresses text MUST follow this model.

## Nodes

- Every node has a type-prefixed id: ` + "`" + `text.<uuid>` + "`" + `, ` + "`" + `folder.<uuid>` + "`" + `,
  ` + "`" + `recipe.<uuid>` + "`" + `, and so on.
- Text node content is HTML. Block elements (` + "`" + `p` + "`" + `, ` + "`" + `h1` + "`" + `..` + "`" + `h6` + "`" + `,
  ` + "`" + `ul` + "`" + `, ` + "`" + `li` + "`" + `, ` + "`" + `blockquote` + "`" + `) carry structure; inline mark tags
  (` + "`" + `a` + "`" + `, ` + "`" + `strong` + "`" + `, ` + "`" + `em` + "`" + `, ` + "`" + `code` + "`" + `, ...) style text without
  affecting positions.
- Recipe nodes own three child text nodes: description, ingredients, and
  steps. Their anchors appear in the recipe's link menu.

## Positions

Characters are addressed by document position, counted over the HTML tree:

- Each structural element contributes one position for its opening tag and
  one for its closing tag. Mark tags are transparent and contribute none.
- Each text character contributes one position. Positions fall in the gaps
  between characters.
- A selection is recorded as a text extent:
  ` + "`" + `{"type": "text", "text": "...", "startCharacter": s, "endCharacter": e}` + "`" + `
  where ` + "`" + `s` + "`" + ` is the position of the gap before the first selected
  character minus one, ` + "`" + `e` + "`" + ` is inclusive, and
  ` + "`" + `e - s + 1` + "`" + ` equals the selected text's length in runes.

Example: in ` + "`" + `<p>Hello world</p>` + "`" + ` the word ` + "`" + `world` + "`" + ` is
` + "`" + `{"text": "world", "startCharacter": 6, "endCharacter": 10}` + "`" + `.

## Anchors and links

- An anchor pins an extent to a node: ` + "`" + `anchor.<uuid>` + "`" + `.
- A link joins two anchors symmetrically: ` + "`" + `link.<uuid>` + "`" + `. Either side
  navigates to the other.
- The ` + "`" + `link_selection` + "`" + ` tool creates both anchors and the link in one
  call. Pass the exact selected text together with its start and end
  characters; Gebo validates that they agree.
- When a node's content is saved, Gebo recomputes every anchor's extent from
  the link marks still present in the HTML. Anchors whose marks were edited
  away are deleted along with their links.

## Rules

1. Never invent positions. Read the node first and count, or reuse an
   extent returned by another tool.
2. The selected text must appear contiguously in one node at the stated
   positions.
3. Anchors and links are server-owned. Do not fabricate ids; use the ids
   returned by the tools.
`
