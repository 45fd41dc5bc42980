package colab

import (
	"fmt"
	"strconv"
	"strings"
)

// Output markers printed by the injected cell. The retriever keys off
// markerComplete to decide the audio file exists remotely.
const (
	markerStarted  = "GENERATION_STARTED"
	markerComplete = "GENERATION_COMPLETE"
)

// GenerationParams are the synthesis parameters written into the
// injection cell.
type GenerationParams struct {
	NumStep       int
	Speed         float64
	RemoveLongSil bool
	MaxDuration   int
}

// renderInjectionCell builds the Python source for the input cell: the
// bulletin text assigned to the configured variable, the synthesis
// parameters, and the generation call bracketed by output markers.
func renderInjectionCell(text, textVariable, remotePath string, params GenerationParams) string {
	var b strings.Builder

	b.WriteString("# Generate speech from injected bulletin\n")
	b.WriteString("import torch\n\n")
	fmt.Fprintf(&b, "%s = \"\"\"%s\"\"\"\n\n", textVariable, text)
	fmt.Fprintf(&b, "OUTPUT_WAV = %q\n\n", remotePath)
	fmt.Fprintf(&b, "NUM_STEP = %d\n", params.NumStep)
	fmt.Fprintf(&b, "SPEED = %s\n", strconv.FormatFloat(params.Speed, 'g', -1, 64))
	fmt.Fprintf(&b, "REMOVE_LONG_SIL = %s\n", pyBool(params.RemoveLongSil))
	fmt.Fprintf(&b, "MAX_DURATION = %d\n\n", params.MaxDuration)
	fmt.Fprintf(&b, "print(%q)\n\n", markerStarted)
	b.WriteString("with torch.inference_mode():\n")
	b.WriteString("    metrics = generate_sentence(\n")
	b.WriteString("        save_path=OUTPUT_WAV,\n")
	b.WriteString("        prompt_text=PROMPT_TEXT,\n")
	b.WriteString("        prompt_wav=PROMPT_WAV,\n")
	fmt.Fprintf(&b, "        text=%s,\n", textVariable)
	b.WriteString("        model=model,\n")
	b.WriteString("        vocoder=vocoder,\n")
	b.WriteString("        tokenizer=tokenizer,\n")
	b.WriteString("        feature_extractor=feature_extractor,\n")
	b.WriteString("        device=device,\n")
	b.WriteString("        num_step=NUM_STEP,\n")
	b.WriteString("        guidance_scale=1.0,\n")
	b.WriteString("        speed=SPEED,\n")
	b.WriteString("        t_shift=0.5,\n")
	b.WriteString("        target_rms=0.1,\n")
	b.WriteString("        feat_scale=0.1,\n")
	b.WriteString("        sampling_rate=config[\"feature\"][\"sampling_rate\"],\n")
	b.WriteString("        max_duration=MAX_DURATION,\n")
	b.WriteString("        remove_long_sil=REMOVE_LONG_SIL,\n")
	b.WriteString("    )\n\n")
	b.WriteString("print(f\"Duration: {metrics['wav_seconds']:.2f}s | Time: {metrics['t']:.2f}s\")\n")
	fmt.Fprintf(&b, "print(%q)\n", markerComplete)

	return b.String()
}

func pyBool(v bool) string {
	if v {
		return "True"
	}
	return "False"
}
