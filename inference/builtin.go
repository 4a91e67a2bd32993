package inference

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"go_imgutils/tensor"
)

// Builtin models run in pure Go and need no model file. They stand in for
// real networks in smoke runs and tests:
//
//	identity        returns the input
//	nearest-xN      N-times nearest-neighbour upscale, rank-4 output
//	nearest6d-xN    same pixels reported as (b, c, N, h, N, w)
//	mean-score      (b, 2) classifier: mean input brightness and its complement
const (
	BuiltinIdentity  = "identity"
	BuiltinMeanScore = "mean-score"

	nearestPrefix   = "nearest-x"
	nearest6DPrefix = "nearest6d-x"
)

// IsBuiltin reports whether name refers to a builtin model.
func IsBuiltin(name string) bool {
	_, ok := builtinLoader(name)
	return ok
}

// BuiltinNames lists representative builtin model names.
func BuiltinNames() []string {
	names := []string{BuiltinIdentity, BuiltinMeanScore, "nearest-x2", "nearest-x4", "nearest6d-x2", "nearest6d-x4"}
	sort.Strings(names)
	return names
}

func builtinLoader(name string) (Loader, bool) {
	switch name {
	case BuiltinIdentity:
		return func(string) (Session, error) { return identitySession{}, nil }, true
	case BuiltinMeanScore:
		return func(string) (Session, error) { return meanScoreSession{}, nil }, true
	}
	for _, prefix := range []string{nearestPrefix, nearest6DPrefix} {
		rest, ok := strings.CutPrefix(name, prefix)
		if !ok {
			continue
		}
		scale, err := strconv.Atoi(rest)
		if err != nil || scale < 1 || scale > 16 {
			return nil, false
		}
		s := nearestSession{scale: scale, rank6: prefix == nearest6DPrefix}
		return func(string) (Session, error) { return s, nil }, true
	}
	return nil, false
}

type identitySession struct{}

func (identitySession) Run(ctx context.Context, input *tensor.Tensor) (Output, error) {
	if err := ctx.Err(); err != nil {
		return Output{}, err
	}
	return OutputOf(input.Clone()), nil
}

func (identitySession) Close() error { return nil }

type nearestSession struct {
	scale int
	rank6 bool
}

func (s nearestSession) Run(ctx context.Context, input *tensor.Tensor) (Output, error) {
	if err := ctx.Err(); err != nil {
		return Output{}, err
	}
	k := s.scale
	out := tensor.New(input.N, input.C, input.H*k, input.W*k)
	for n := 0; n < input.N; n++ {
		for c := 0; c < input.C; c++ {
			for y := 0; y < out.H; y++ {
				src := input.Row(n, c, y/k)
				dst := out.Row(n, c, y)
				for x := range dst {
					dst[x] = src[x/k]
				}
			}
		}
	}
	if !s.rank6 {
		return OutputOf(out), nil
	}
	return Output{Shape: []int{input.N, input.C, k, input.H, k, input.W}, Data: out.Data}, nil
}

func (nearestSession) Close() error { return nil }

// meanScoreSession maps the mean of a [-1,1] normalized input to [0,1].
type meanScoreSession struct{}

func (meanScoreSession) Run(ctx context.Context, input *tensor.Tensor) (Output, error) {
	if err := ctx.Err(); err != nil {
		return Output{}, err
	}
	if input.Len() == 0 {
		return Output{}, fmt.Errorf("%w: empty input", ErrInvalidParams)
	}
	per := input.C * input.H * input.W
	data := make([]float32, 0, 2*input.N)
	for n := 0; n < input.N; n++ {
		var sum float64
		for _, v := range input.Data[n*per : (n+1)*per] {
			sum += float64(v)
		}
		score := float32(min(max((sum/float64(per)+1)/2, 0), 1))
		data = append(data, score, 1-score)
	}
	return Output{Shape: []int{input.N, 2}, Data: data}, nil
}

func (meanScoreSession) Close() error { return nil }
