package auk

import (
	"github.com/effective-security/auk/tools"
)

// WaitForUserToUploadFileName is the name of the upload tool
const WaitForUserToUploadFileName = "wait_for_user_to_upload_file"

// WaitForUserToUploadFileRequest is the file upload configuration
type WaitForUserToUploadFileRequest struct {
	Title       string   `json:"title" yaml:"title" validate:"required" jsonschema:"description=Title for the upload section"`
	Description string   `json:"description,omitempty" yaml:"description,omitempty" jsonschema:"description=Optional description text"`
	Accept      []string `json:"accept,omitempty" yaml:"accept,omitempty" jsonschema:"description=Accepted file types (e.g.\\, ['image/*'\\, '.pdf'\\, '.docx'])"`
	Multiple    *bool    `json:"multiple,omitempty" yaml:"multiple,omitempty" jsonschema:"default=false,description=Allow multiple file uploads"`
	MaxSizeMB   *float64 `json:"max_size_mb,omitempty" yaml:"max_size_mb,omitempty" validate:"omitempty,gt=0" jsonschema:"exclusiveMinimum=0,description=Maximum file size in MB"`
	Required    *bool    `json:"required,omitempty" yaml:"required,omitempty" jsonschema:"default=true,description=Whether file upload is required"`
}

// UploadedFile is the information about a file uploaded by the user
type UploadedFile struct {
	FileName string  `json:"file_name" yaml:"file_name" jsonschema:"description=Uploaded file name"`
	FileSize float64 `json:"file_size" yaml:"file_size" jsonschema:"description=File size in bytes"`
	FileType string  `json:"file_type" yaml:"file_type" jsonschema:"description=MIME type of the file"`
	FileURL  string  `json:"file_url" yaml:"file_url" validate:"url" jsonschema:"format=uri,description=URL to access the uploaded file"`
}

// WaitForUserToUploadFileConfig declares the upload tool
var WaitForUserToUploadFileConfig = tools.Config{
	Name:             WaitForUserToUploadFileName,
	Description:      "Wait for the user to upload one or more files.",
	InputDescription: "File upload configuration",
	Output:           outputSchema[[]UploadedFile]("list of files uploaded by the user"),
	InterruptOn:      respondOnly(WaitForUserToUploadFileName),
}

// NewWaitForUserToUploadFile returns the upload tool
func NewWaitForUserToUploadFile() *tools.Func[WaitForUserToUploadFileRequest, string] {
	return tools.MustNew(WaitForUserToUploadFileConfig,
		canned[WaitForUserToUploadFileRequest]("user uploaded files: answer will appear in human in the loop reject message"))
}
