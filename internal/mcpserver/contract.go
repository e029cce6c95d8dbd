package mcpserver

// NoteFormat describes how hashnote reads note content. LLM consumers should
// follow it when creating or updating notes.
const NoteFormat = `# Hashnote Note Format

A note is plain text. Structure is expressed inline with hashtags; there is
no frontmatter and no title field.

## Title

The first non-empty line becomes the title (at most 100 characters). A note
with images but no text is titled "图片笔记".

## Tags

- A tag is "#" followed by letters, digits, "_" or CJK characters: ` + "`" + `#reading` + "`" + `, ` + "`" + `#项目` + "`" + `.
- Tags are case-insensitive and stored lowercase. They may appear anywhere.
- Tags are removed from the displayed text, so write sentences that still read
  well without them.

## Todos

- ` + "`" + `#todo` + "`" + ` starts a todo block. The block runs until the next "#" or the end
  of the note: ` + "`" + `#todo buy milk #todo call mom` + "`" + ` holds two todos.
- A block whose text starts with "✓" is done: ` + "`" + `#todo ✓ buy milk` + "`" + `.
- Optional attributes inside a block: ` + "`" + `due:2025-01-31` + "`" + `, ` + "`" + `start:2025-01-20` + "`" + `,
  and a priority ` + "`" + `!1` + "`" + ` (high) to ` + "`" + `!3` + "`" + ` (low).
- Use the toggle_todo tool instead of editing the "✓" by hand.

## Images

- Images are Markdown image links appended after the text, separated by
  blank lines: ` + "`" + `![图片1](https://example.com/photo.jpg)` + "`" + `.
- The first image is the note's cover. Image links are hidden from the
  displayed text.
- Upload external or inline images with the upload_asset tool first; it
  returns a ` + "`" + `markdown` + "`" + ` field ready to paste.

## Example

` + "```" + `text
Weekly review #review
Shipped the importer, next up is search. #work
#todo write release notes due:2025-01-31 !1
#todo ✓ book the venue

![图片1](/attachments/whiteboard-1a2b3c4d.jpg)
` + "```" + `
`
