package main

import (
	"encoding/binary"
	"flag"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strings"

	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/vsariola/kaiku"
	"github.com/vsariola/kaiku/oto"
	"github.com/vsariola/kaiku/version"
	"github.com/vsariola/kaiku/vm"
)

func main() {
	play := flag.Bool("p", false, "Play the input programs (default behaviour when no other output is defined).")
	rawOut := flag.Bool("r", false, "Output the rendered audio as a .raw file of interleaved stereo float32.")
	pcm := flag.Bool("c", false, "Convert audio to 16-bit signed PCM when outputting.")
	directory := flag.String("o", "", "Directory where to output all files. By default, everything is placed in the same directory where the program file is.")
	seconds := flag.Float64("t", 10, "Duration to render, in seconds.")
	rate := flag.Int("sr", kaiku.DefaultSampleRate, "Sample rate.")
	versionFlag := flag.Bool("v", false, "Print version.")
	help := flag.Bool("h", false, "Show help.")
	flag.Usage = printUsage
	flag.Parse()
	if *versionFlag {
		fmt.Println(version.VersionOrHash)
		os.Exit(0)
	}
	if flag.NArg() == 0 || *help {
		flag.Usage()
		os.Exit(0)
	}
	if !*rawOut {
		*play = true
	}
	logger, err := zap.NewDevelopment()
	if err != nil {
		fmt.Fprintf(os.Stderr, "could not create logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()
	sugar := logger.Sugar()

	var audioContext *oto.Context
	if *play {
		audioContext, err = oto.NewContext(*rate)
		if err != nil {
			sugar.Errorw("could not acquire audio context", "error", err)
			os.Exit(1)
		}
		defer audioContext.Close()
	}

	process := func(filename string) error {
		inputBytes, err := os.ReadFile(filename)
		if err != nil {
			return fmt.Errorf("could not read file %v: %w", filename, err)
		}
		var program kaiku.Program
		if err := yaml.Unmarshal(inputBytes, &program); err != nil {
			return fmt.Errorf("could not parse %v: %w", filename, err)
		}
		synth := vm.New(float32(*rate))
		if err := synth.LoadProgram(program); err != nil {
			return fmt.Errorf("could not load %v: %w", filename, err)
		}
		frames := int(*seconds * float64(*rate))
		buffer := make(kaiku.AudioBuffer, frames)
		if err := buffer.Fill(synth); err != nil {
			return fmt.Errorf("could not render %v: %w", filename, err)
		}
		sugar.Infow("rendered program", "file", filename, "frames", frames, "bpm", synth.BPM())
		if *rawOut {
			f := outputPath(filename, *directory, ".raw")
			if err := os.WriteFile(f, rawBytes(buffer, *pcm), 0644); err != nil {
				return fmt.Errorf("could not write %v: %w", f, err)
			}
		}
		if *play {
			sink := audioContext.Output()
			const chunk = 2048
			for pos := 0; pos < len(buffer); pos += chunk {
				end := pos + chunk
				if end > len(buffer) {
					end = len(buffer)
				}
				if err := sink.WriteAudio(buffer[pos:end]); err != nil {
					sink.Close()
					return fmt.Errorf("could not play %v: %w", filename, err)
				}
			}
			if err := sink.Close(); err != nil {
				return fmt.Errorf("could not close audio output: %w", err)
			}
		}
		return nil
	}

	retval := 0
	for _, param := range flag.Args() {
		if err := process(param); err != nil {
			sugar.Errorw("could not process file", "file", param, "error", err)
			retval = 1
		}
	}
	os.Exit(retval)
}

func outputPath(filename, directory, extension string) string {
	dir, name := filepath.Split(filename)
	if directory != "" {
		dir = directory
	}
	name = strings.TrimSuffix(name, filepath.Ext(name)) + extension
	return filepath.Join(dir, name)
}

// rawBytes serializes the buffer as interleaved little-endian samples,
// float32 by default or int16 when pcm is set.
func rawBytes(buffer kaiku.AudioBuffer, pcm bool) []byte {
	var out []byte
	for _, frame := range buffer {
		for ch := 0; ch < 2; ch++ {
			if pcm {
				v := frame[ch]
				var s int16
				switch {
				case v <= -1:
					s = -math.MaxInt16
				case v >= 1:
					s = math.MaxInt16
				default:
					s = int16(v * math.MaxInt16)
				}
				out = binary.LittleEndian.AppendUint16(out, uint16(s))
			} else {
				out = binary.LittleEndian.AppendUint32(out, math.Float32bits(frame[ch]))
			}
		}
	}
	return out
}

func printUsage() {
	fmt.Fprintf(os.Stderr, "Kaiku command line utility for playing .yml program files.\nUsage: %s [flags] [path ...]\n", os.Args[0])
	flag.PrintDefaults()
}
