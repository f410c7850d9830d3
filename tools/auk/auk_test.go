package auk_test

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/cockroachdb/errors"
	"github.com/effective-security/auk/chatmodel"
	"github.com/effective-security/auk/tools"
	"github.com/effective-security/auk/tools/auk"
	"github.com/invopop/jsonschema"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testImage = "https://ik.imagekit.io/siteli6503/generated-images/gemini-1765890124897-0_ly5MpqXId.png"

func prop(t *testing.T, sc *jsonschema.Schema, name string) *jsonschema.Schema {
	t.Helper()
	require.NotNil(t, sc.Properties)
	p, ok := sc.Properties.Get(name)
	require.True(t, ok, "property %s", name)
	return p
}

func TestAll(t *testing.T) {
	t.Parallel()
	list := auk.All(auk.StaticImages(testImage))
	assert.Equal(t, []string{
		"ask_user_with_options",
		"display_information_card",
		"image_generation",
		"wait_for_user_to_upload_file",
		"visualize_data_with_chart",
		"ask_user_to_fill_form",
	}, tools.Names(list...))

	ds := auk.Descriptors(auk.StaticImages(testImage))
	require.Len(t, ds, 6)
	for _, d := range ds {
		assert.NotEmpty(t, d.Description, d.Name)
		require.NotNil(t, d.Schema, d.Name)
		assert.Equal(t, "object", d.Schema.Type, d.Name)
		assert.NotNil(t, d.Output, d.Name)
	}

	d, ok := auk.Find(auk.WaitForUserToUploadFileName)
	require.True(t, ok)
	assert.Equal(t, "Wait for the user to upload one or more files.", d.Description)
	_, ok = auk.Find("unknown")
	assert.False(t, ok)
}

func TestDefaultInterruptOn(t *testing.T) {
	t.Parallel()
	im := auk.DefaultInterruptOn()
	require.Len(t, im, 3)
	for _, name := range []string{
		auk.AskUserWithOptionsName,
		auk.WaitForUserToUploadFileName,
		auk.AskUserToFillFormName,
	} {
		cfg, ok := im[name]
		require.True(t, ok, name)
		assert.Equal(t, []tools.DecisionType{tools.DecisionRespond}, cfg.AllowedDecisions)
	}

	for _, name := range []string{
		auk.DisplayInformationCardName,
		auk.VisualizeDataWithChartName,
		auk.ImageGenerationName,
	} {
		d, ok := auk.Find(name)
		require.True(t, ok)
		assert.Empty(t, d.InterruptOn, name)
	}

	assert.Equal(t, im, tools.CollectInterruptOn(auk.All(nil)...))
}

func TestCannedResults(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	tests := []struct {
		tool  tools.ITool
		input string
		exp   string
	}{
		{
			auk.NewAskUserWithOptions(),
			`{"description":"Pick a color","options":[{"index":0,"label":"red"},{"index":1,"label":"blue"}]}`,
			"user selected: answer will appear in human in the loop reject message",
		},
		{
			auk.NewAskUserToFillForm(),
			`{"title":"Contact","schema":{"type":"object","properties":{"email":{"type":"string"}}}}`,
			"user filled form: answer will appear in human in the loop reject message",
		},
		{
			auk.NewWaitForUserToUploadFile(),
			`{"title":"Upload your resume","accept":[".pdf"]}`,
			"user uploaded files: answer will appear in human in the loop reject message",
		},
		{
			auk.NewDisplayInformationCard(),
			`{"title":"Done","content":"The report is ready","type":"success","actions":[{"label":"Open","action_id":"open","link":"https://example.com/r"}]}`,
			"information card displayed: answer will appear in human in the loop reject message",
		},
		{
			auk.NewVisualizeDataWithChart(),
			`{"title":"Sales","chart_type":"bar","data":[{"month":"Jan","value":10}],"x_axis":{"label":"Month","field":"month"}}`,
			"chart visualized: answer will appear in human in the loop reject message",
		},
	}
	for _, tc := range tests {
		t.Run(tc.tool.Name(), func(t *testing.T) {
			t.Parallel()
			out, err := tc.tool.Call(ctx, tc.input)
			require.NoError(t, err)
			assert.Equal(t, tc.exp, out)
		})
	}
}

func TestInvalidInput(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	tests := []struct {
		tool  tools.ITool
		input string
	}{
		{auk.NewAskUserWithOptions(), `{"description":"q","type":"any_select","options":[]}`},
		{auk.NewAskUserWithOptions(), `{"options":[]}`},
		{auk.NewAskUserToFillForm(), `{"title":"no schema"}`},
		{auk.NewWaitForUserToUploadFile(), `{"title":"t","max_size_mb":-1}`},
		{auk.NewDisplayInformationCard(), `{"title":"t","content":"c","type":"fatal"}`},
		{auk.NewDisplayInformationCard(), `{"title":"t","content":"c","image_url":"not a url"}`},
		{auk.NewVisualizeDataWithChart(), `{"title":"t","chart_type":"gauge","data":[]}`},
		{auk.NewImageGeneration(auk.StaticImages()), `{"prompt":"p","resolution":"8K"}`},
		{auk.NewImageGeneration(auk.StaticImages()), `{"prompt":"p","aspectRatio":"7:3"}`},
		{auk.NewImageGeneration(auk.StaticImages()), `[1,2]`},
	}
	for _, tc := range tests {
		_, err := tc.tool.Call(ctx, tc.input)
		require.Error(t, err, tc.input)
		assert.True(t, errors.Is(err, chatmodel.ErrFailedUnmarshalInput), tc.input)
	}
}

func TestAskUserWithOptions(t *testing.T) {
	t.Parallel()
	tool := auk.NewAskUserWithOptions()
	assert.Contains(t, tool.Description(), "When to use:")
	assert.Contains(t, tool.Description(), "Not to use:")

	sc := tool.InputSchema()
	assert.Equal(t, "The single question to ask the user", sc.Description)
	assert.Equal(t, []string{"description", "options"}, sc.Required)

	typ := prop(t, sc, "type")
	assert.Equal(t, []any{"single_select", "multi_select"}, typ.Enum)
	assert.Equal(t, "single_select", typ.Default)
	assert.Equal(t, true, prop(t, sc, "allow_custom_input").Default)

	opts := prop(t, sc, "options")
	require.NotNil(t, opts.Items)
	assert.Equal(t, []string{"index", "label"}, opts.Items.Required)
	assert.Equal(t, "Index of the option", prop(t, opts.Items, "index").Description)
	assert.Equal(t, "number", prop(t, opts.Items, "index").Type)

	assert.Equal(t, "string", tool.OutputSchema().Type)
	assert.Equal(t, "user selected option", tool.OutputSchema().Description)

	req, err := tool.Parse(`{"description":"q","options":[{"index":1,"label":"a"}]}`)
	require.NoError(t, err)
	assert.Equal(t, auk.SingleSelect, req.Type)
	require.NotNil(t, req.AllowCustomInput)
	assert.True(t, *req.AllowCustomInput)

	req, err = tool.Parse(`{"description":"q","options":[{"index":1.5,"label":"a"}],"allow_custom_input":null}`)
	require.NoError(t, err)
	assert.Equal(t, 1.5, req.Options[0].Index)
	assert.True(t, *req.AllowCustomInput)

	// the declared schema is enforced on the model arguments
	for _, in := range []string{
		`{"description":"q","options":[{"label":"a"}]}`,
		`{"description":"q","options":[{"index":"first","label":"a"}]}`,
		`{"description":"q","options":[{"index":1}]}`,
		`{"description":"q","options":[],"type":"ranked"}`,
	} {
		_, err = tool.Call(context.Background(), in)
		assert.ErrorIs(t, err, chatmodel.ErrFailedUnmarshalInput, in)
	}
}

func TestAskUserToFillForm(t *testing.T) {
	t.Parallel()
	tool := auk.NewAskUserToFillForm()
	sc := tool.InputSchema()
	assert.Equal(t, []string{"title", "schema"}, sc.Required)
	assert.Equal(t, "object", prop(t, sc, "schema").Type)
	assert.Equal(t, "object", prop(t, sc, "ui_schema").Type)
	assert.Equal(t, "object", prop(t, sc, "form_data").Type)
	assert.Equal(t, "object", tool.OutputSchema().Type)

	req, err := tool.Parse(`{"title":"t","schema":{"type":"object"},"form_data":{"name":"Bob"}}`)
	require.NoError(t, err)
	assert.Equal(t, "Bob", req.FormData["name"])
}

func TestWaitForUserToUploadFile(t *testing.T) {
	t.Parallel()
	tool := auk.NewWaitForUserToUploadFile()
	sc := tool.InputSchema()
	assert.Equal(t, []string{"title"}, sc.Required)
	assert.Equal(t, false, prop(t, sc, "multiple").Default)
	assert.Equal(t, true, prop(t, sc, "required").Default)
	assert.Equal(t, "Accepted file types (e.g., ['image/*', '.pdf', '.docx'])", prop(t, sc, "accept").Description)

	out := tool.OutputSchema()
	assert.Equal(t, "array", out.Type)
	require.NotNil(t, out.Items)
	assert.Equal(t, []string{"file_name", "file_size", "file_type", "file_url"}, out.Items.Required)
	assert.Equal(t, "uri", prop(t, out.Items, "file_url").Format)

	req, err := tool.Parse(`{"title":"t","max_size_mb":2.5}`)
	require.NoError(t, err)
	require.NotNil(t, req.Multiple)
	assert.False(t, *req.Multiple)
	require.NotNil(t, req.Required)
	assert.True(t, *req.Required)
	assert.Equal(t, 2.5, *req.MaxSizeMB)
}

func TestDisplayInformationCard(t *testing.T) {
	t.Parallel()
	tool := auk.NewDisplayInformationCard()
	sc := tool.InputSchema()
	assert.Equal(t, []string{"title", "content"}, sc.Required)
	typ := prop(t, sc, "type")
	assert.Equal(t, []any{"info", "success", "warning", "error"}, typ.Enum)
	assert.Equal(t, "info", typ.Default)
	assert.Equal(t, "uri", prop(t, sc, "image_url").Format)

	actions := prop(t, sc, "actions")
	require.NotNil(t, actions.Items)
	assert.Equal(t, []string{"label", "action_id"}, actions.Items.Required)

	out := tool.OutputSchema()
	assert.Len(t, out.AnyOf, 2)

	req, err := tool.Parse(`{"title":"t","content":"c"}`)
	require.NoError(t, err)
	assert.Equal(t, auk.CardInfo, req.Type)
}

func TestVisualizeDataWithChart(t *testing.T) {
	t.Parallel()
	tool := auk.NewVisualizeDataWithChart()
	sc := tool.InputSchema()
	assert.Equal(t, []string{"title", "chart_type", "data"}, sc.Required)
	assert.Equal(t, []any{"line", "bar", "pie", "scatter", "area", "radar", "heatmap", "histogram"}, prop(t, sc, "chart_type").Enum)
	assert.Equal(t, []string{"label", "field"}, prop(t, sc, "x_axis").Required)
	assert.Equal(t, "Data field for Y-axis", prop(t, prop(t, sc, "y_axis"), "field").Description)
	assert.Equal(t, "array", prop(t, sc, "data").Type)
}

func TestImageGeneration(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	var got *auk.ImageGenerationRequest
	tool := auk.NewImageGeneration(auk.ImageGeneratorFunc(func(_ context.Context, req *auk.ImageGenerationRequest) ([]string, error) {
		got = req
		return []string{testImage}, nil
	}))
	assert.Contains(t, tool.Description(), "Example 3: Merge Multiple Images")

	sc := tool.InputSchema()
	assert.Equal(t, []string{"prompt"}, sc.Required)
	assert.Equal(t, "1K", prop(t, sc, "resolution").Default)
	assert.Equal(t, "16:9", prop(t, sc, "aspectRatio").Default)
	assert.Len(t, prop(t, sc, "aspectRatio").Enum, 10)
	assert.Equal(t, auk.DefaultImageModel, prop(t, sc, "model").Default)
	assert.Equal(t, "image url", tool.OutputSchema().Description)

	out, err := tool.Call(ctx, `{"prompt":"a golden retriever puppy"}`)
	require.NoError(t, err)

	var res auk.ImageGenerationResult
	require.NoError(t, json.Unmarshal([]byte(out), &res))
	assert.Equal(t, []string{testImage}, res.ImageURL)
	assert.Equal(t, "The images are generated and shown to the user. You don't need to show the image url to the user in your response.", res.Hint)

	require.NotNil(t, got)
	assert.Equal(t, "1K", got.Resolution)
	assert.Equal(t, "16:9", got.AspectRatio)
	assert.Equal(t, "gemini-3-pro-image-preview", got.Model)

	_, err = tool.Call(ctx, `{"prompt":"edit","input_image_urls":["https://example.com/1.png"],"resolution":"4K","aspectRatio":"1:1","model":"other"}`)
	require.NoError(t, err)
	assert.Equal(t, "4K", got.Resolution)
	assert.Equal(t, "1:1", got.AspectRatio)
	assert.Equal(t, "other", got.Model)
	assert.Equal(t, []string{"https://example.com/1.png"}, got.InputImageURLs)

	failing := auk.NewImageGeneration(auk.ImageGeneratorFunc(func(context.Context, *auk.ImageGenerationRequest) ([]string, error) {
		return nil, errors.New("quota exceeded")
	}))
	_, err = failing.Call(ctx, `{"prompt":"p"}`)
	assert.EqualError(t, err, "failed to generate images: quota exceeded")

	_, err = auk.NewImageGeneration(nil).Call(ctx, `{"prompt":"p"}`)
	assert.EqualError(t, err, "image generator is not configured")
}

func TestStaticImages(t *testing.T) {
	t.Parallel()
	urls, err := auk.StaticImages(testImage).GenerateImages(context.Background(), &auk.ImageGenerationRequest{})
	require.NoError(t, err)
	assert.Equal(t, []string{testImage}, urls)
}
