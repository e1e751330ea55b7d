package email

import (
	"context"

	"github.com/cyphera/emailsend/internal/helpers"
	"github.com/cyphera/emailsend/internal/workflow"
)

const defaultAttachmentName = "unknown"

// resolveAttachments turns a comma separated list of binary property names
// into attachments. Names the item does not carry are skipped. It returns nil
// when nothing resolves.
func resolveAttachments(ctx context.Context, exec workflow.ExecuteContext, itemIndex int, item workflow.Item, propertyList string) ([]Attachment, error) {
	if propertyList == "" || !item.HasBinary() {
		return nil, nil
	}

	var attachments []Attachment
	for _, name := range helpers.SplitAndTrim(propertyList) {
		binary, ok := item.Binary[name]
		if !ok {
			continue
		}
		content, err := exec.BinaryDataBuffer(ctx, itemIndex, name)
		if err != nil {
			return nil, &ParameterError{ItemIndex: itemIndex, Parameter: "options.attachments", Err: err}
		}
		filename := binary.FileName
		if filename == "" {
			filename = defaultAttachmentName
		}
		attachments = append(attachments, Attachment{
			Filename: filename,
			Content:  content,
			CID:      name,
		})
	}
	return attachments, nil
}
