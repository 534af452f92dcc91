package httpapi

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/xeipuuv/gojsonschema"

	"github.com/p-n-ai/pai-learn/internal/platform/apperr"
)

const maxBodyBytes = 1 << 20

// Request body schemas. They check shape and types; required business
// fields are checked by the services so their messages stay uniform.
// Optional arrays accept null.
var (
	courseCreateSchema = mustSchema(`{
		"type": "object",
		"properties": {
			"title": {"type": "string"},
			"description": {"type": "string"},
			"category": {"type": "string"},
			"gradeId": {"type": "string"},
			"image": {"type": "string"},
			"level": {"type": "string"},
			"teacherName": {"type": "string"},
			"sections": {"type": ["array", "null"], "items": {"$ref": "#/definitions/section"}}
		},
		"definitions": ` + treeDefinitions + `
	}`)

	coursePatchSchema = mustSchema(`{
		"type": "object",
		"properties": {
			"title": {"type": ["string", "null"]},
			"description": {"type": ["string", "null"]},
			"category": {"type": ["string", "null"]},
			"gradeId": {"type": ["string", "null"]},
			"image": {"type": ["string", "null"]},
			"level": {"type": ["string", "null"]},
			"status": {"type": ["string", "null"]},
			"teacherName": {"type": ["string", "null"]},
			"sections": {"type": ["array", "null"], "items": {"$ref": "#/definitions/section"}}
		},
		"definitions": ` + treeDefinitions + `
	}`)

	sectionSchema = mustSchema(`{
		"$ref": "#/definitions/section",
		"definitions": ` + treeDefinitions + `
	}`)

	sectionPatchSchema = mustSchema(`{
		"type": "object",
		"properties": {
			"sectionTitle": {"type": ["string", "null"]},
			"sectionDescription": {"type": ["string", "null"]},
			"chapters": {"type": ["array", "null"], "items": {"$ref": "#/definitions/chapter"}}
		},
		"definitions": ` + treeDefinitions + `
	}`)

	chapterSchema = mustSchema(`{
		"$ref": "#/definitions/chapter",
		"definitions": ` + treeDefinitions + `
	}`)

	commentSchema = mustSchema(`{
		"type": "object",
		"properties": {"text": {"type": "string"}},
		"required": ["text"]
	}`)

	gradeCreateSchema = mustSchema(`{
		"type": "object",
		"properties": {
			"name": {"type": "string"},
			"order": {"type": "integer"},
			"description": {"type": "string"},
			"status": {"type": "string"}
		}
	}`)

	gradePatchSchema = mustSchema(`{
		"type": "object",
		"properties": {
			"name": {"type": ["string", "null"]},
			"order": {"type": ["integer", "null"]},
			"description": {"type": ["string", "null"]},
			"status": {"type": ["string", "null"]}
		}
	}`)

	enrollSchema = mustSchema(`{
		"type": "object",
		"properties": {
			"userId": {"type": "string", "minLength": 1},
			"courseId": {"type": "string", "minLength": 1}
		},
		"required": ["userId", "courseId"]
	}`)

	progressSchema = mustSchema(`{
		"type": "object",
		"properties": {
			"sections": {
				"type": "array",
				"items": {
					"type": "object",
					"properties": {
						"sectionId": {"type": "string", "minLength": 1},
						"chapters": {
							"type": ["array", "null"],
							"items": {
								"type": "object",
								"properties": {
									"chapterId": {"type": "string", "minLength": 1},
									"completed": {"type": "boolean"}
								},
								"required": ["chapterId", "completed"]
							}
						}
					},
					"required": ["sectionId"]
				}
			}
		},
		"required": ["sections"]
	}`)

	threadCreateSchema = mustSchema(`{
		"type": "object",
		"properties": {
			"courseId": {"type": "string"},
			"title": {"type": "string"},
			"content": {"type": "string"},
			"creatorName": {"type": "string"},
			"category": {"type": "string"},
			"tags": {"type": ["array", "null"], "items": {"type": "string"}}
		}
	}`)

	threadPatchSchema = mustSchema(`{
		"type": "object",
		"properties": {
			"title": {"type": ["string", "null"]},
			"content": {"type": ["string", "null"]},
			"category": {"type": ["string", "null"]},
			"tags": {"type": ["array", "null"], "items": {"type": "string"}},
			"status": {"type": ["string", "null"]}
		}
	}`)

	postCreateSchema = mustSchema(`{
		"type": "object",
		"properties": {
			"content": {"type": "string"},
			"userName": {"type": "string"},
			"images": {"type": ["array", "null"], "items": {"type": "string"}}
		}
	}`)

	postPatchSchema = mustSchema(`{
		"type": "object",
		"properties": {
			"content": {"type": ["string", "null"]},
			"images": {"type": ["array", "null"], "items": {"type": "string"}},
			"isAnswer": {"type": ["boolean", "null"]}
		}
	}`)
)

const treeDefinitions = `{
	"section": {
		"type": "object",
		"properties": {
			"sectionId": {"type": "string"},
			"sectionTitle": {"type": "string"},
			"sectionDescription": {"type": "string"},
			"chapters": {"type": ["array", "null"], "items": {"$ref": "#/definitions/chapter"}}
		}
	},
	"chapter": {
		"type": "object",
		"properties": {
			"chapterId": {"type": "string"},
			"type": {"type": "string"},
			"title": {"type": "string"},
			"content": {"type": "string"},
			"video": {"type": "string"},
			"comments": {"type": ["array", "null"], "items": {"$ref": "#/definitions/comment"}}
		}
	},
	"comment": {
		"type": "object",
		"properties": {
			"commentId": {"type": "string"},
			"userId": {"type": "string"},
			"text": {"type": "string"},
			"timestamp": {"type": "string"}
		}
	}
}`

func mustSchema(src string) *gojsonschema.Schema {
	s, err := gojsonschema.NewSchema(gojsonschema.NewStringLoader(src))
	if err != nil {
		panic(fmt.Sprintf("compiling request schema: %v", err))
	}
	return s
}

// decode reads the request body, validates it against schema and
// unmarshals it into v. An empty body is treated as {}.
func decode(r *http.Request, schema *gojsonschema.Schema, v any) error {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxBodyBytes+1))
	if err != nil {
		return apperr.New(apperr.ErrValidation, "Request body unreadable")
	}
	if len(body) > maxBodyBytes {
		return apperr.New(apperr.ErrValidation, "Request body too large")
	}
	if len(bytes.TrimSpace(body)) == 0 {
		body = []byte("{}")
	}

	result, err := schema.Validate(gojsonschema.NewBytesLoader(body))
	if err != nil {
		return apperr.New(apperr.ErrValidation, "Invalid JSON body")
	}
	if !result.Valid() {
		problems := make([]string, 0, len(result.Errors()))
		for _, e := range result.Errors() {
			problems = append(problems, e.String())
		}
		return apperr.WithDetails(apperr.ErrValidation, map[string][]string{"errors": problems}, "Invalid request body")
	}

	if err := json.Unmarshal(body, v); err != nil {
		return apperr.New(apperr.ErrValidation, "Invalid request body: %v", err)
	}
	return nil
}
