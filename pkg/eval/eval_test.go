package eval

import (
	"bytes"
	"testing"

	"github.com/ahoy-lang/ahoy-sea-compiler/pkg/arc"
	"github.com/ahoy-lang/ahoy-sea-compiler/pkg/lexer"
	"github.com/ahoy-lang/ahoy-sea-compiler/pkg/lower"
	"github.com/ahoy-lang/ahoy-sea-compiler/pkg/parser"
	"github.com/ahoy-lang/ahoy-sea-compiler/pkg/resolver"
	"github.com/ahoy-lang/ahoy-sea-compiler/pkg/sea"
)

// compile runs the full pipeline on source text, ARC instrumentation
// included, and returns the executable program.
func compile(t *testing.T, src string) *sea.Program {
	t.Helper()
	p := parser.New(lexer.New(src))
	program, err := p.ParseProgram()
	if err != nil {
		t.Fatalf("parse error: %v", err)
	}
	u, err := resolver.Resolve(program)
	if err != nil {
		t.Fatalf("resolve error: %v", err)
	}
	prog, err := lower.Lower(u)
	if err != nil {
		t.Fatalf("lowering error: %v", err)
	}
	if err := arc.Instrument(prog); err != nil {
		t.Fatalf("instrument error: %v", err)
	}
	return prog
}

// run executes main and returns its result and everything printed.
func run(t *testing.T, src string) (int64, string) {
	t.Helper()
	var out bytes.Buffer
	m := New(compile(t, src), &out)
	status, err := m.Run()
	if err != nil {
		t.Fatalf("runtime error: %v\noutput so far:\n%s", err, out.String())
	}
	return status, out.String()
}

func TestStatementExpressionValue(t *testing.T) {
	status, _ := run(t, `
int main(void) {
	int x = ({ int a = 5; a + 3; });
	return x;
}`)
	if status != 8 {
		t.Errorf("main returned %d, want 8", status)
	}
}

func TestNestedStatementExpressions(t *testing.T) {
	status, _ := run(t, `
int main(void) {
	int x = ({ int a = ({ int b = 4; b * 3; }); a + 8; });
	return x;
}`)
	if status != 20 {
		t.Errorf("main returned %d, want 20", status)
	}
}

func TestSiblingOperandsEvaluateLeftToRight(t *testing.T) {
	status, _ := run(t, `
int main(void) {
	int x = 1;
	int y = x + ({ x = 10; 5; });
	return y;
}`)
	if status != 6 {
		t.Errorf("main returned %d, want 6 (left x read before the store)", status)
	}
}

func TestCallArgumentsEvaluateLeftToRight(t *testing.T) {
	status, _ := run(t, `
int pair(int a, int b) {
	return a * 10 + b;
}

int main(void) {
	int x = 1;
	return pair(x, ({ x = 10; 5; }));
}`)
	if status != 15 {
		t.Errorf("main returned %d, want 15 (first argument read before the store)", status)
	}
}

func TestStatementExpressionShadowing(t *testing.T) {
	status, _ := run(t, `
int main(void) {
	int a = 1;
	int b = ({ int a = 5; a + 3; });
	return a * 100 + b;
}`)
	if status != 108 {
		t.Errorf("main returned %d, want 108 (outer a untouched, b = 8)", status)
	}
}

const cardSource = `
typedef struct {
	int __arc_refcount;
	int health;
	int attack;
	int range;
	bool can_move;
} CardData;

CardData* card_create(void) {
	CardData* card = ({
		CardData* __tmp = malloc(sizeof(CardData));
		*__tmp = (CardData){.health = 3, .range = 1};
		__tmp;
	});
	return card;
}
`

func TestCardDefaultsAndRefcount(t *testing.T) {
	status, _ := run(t, cardSource+`
int main(void) {
	CardData* card = card_create();
	if (card->__arc_refcount != 1) { return 100 + card->__arc_refcount; }
	if (card->health != 3) { return 2; }
	if (card->attack != 0) { return 3; }
	if (card->range != 1) { return 4; }
	if (card->can_move != false) { return 5; }
	return 0;
}`)
	if status != 0 {
		t.Errorf("field check %d failed", status)
	}
}

func TestRetainReleaseBalance(t *testing.T) {
	// A second binding bumps the count to 2; its scope exit drops it back.
	status, _ := run(t, cardSource+`
int observe(CardData* card) {
	CardData* alias = card;
	return alias->__arc_refcount;
}

int main(void) {
	CardData* card = card_create();
	int during = observe(card);
	int after = card->__arc_refcount;
	return during * 10 + after;
}`)
	if status != 21 {
		t.Errorf("refcounts = %d, want 21 (2 inside the alias scope, 1 after)", status)
	}
}

func TestCompoundAssignThroughPointerIsIdempotent(t *testing.T) {
	status, _ := run(t, `
typedef struct { int x; int y; } Point;

int main(void) {
	Point pt;
	Point* p = &pt;
	*p = (Point){.x = 70, .y = 80};
	int first = p->x + p->y;
	*p = (Point){.x = 70, .y = 80};
	int second = p->x + p->y;
	if (first != second) { return 1; }
	if (p->x != 70) { return 2; }
	if (p->y != 80) { return 3; }
	return 0;
}`)
	if status != 0 {
		t.Errorf("check %d failed", status)
	}
}

func TestFieldOffsetsThroughPointers(t *testing.T) {
	status, _ := run(t, `
typedef struct { int x; int y; } Point;

int main(void) {
	Point pt;
	intptr_t base = (intptr_t)&pt;
	intptr_t yoff = (intptr_t)&pt.y - base;
	return (int)yoff;
}`)
	if status != 4 {
		t.Errorf("offset of y = %d, want 4", status)
	}
}

func TestTaggedArrayCapacityGrowth(t *testing.T) {
	status, _ := run(t, `
int main(void) {
	AhoyArray* arr = ahoy_array_new();
	if (arr->capacity != 0) { return 1; }
	ahoy_array_push(arr, 10, AHOY_TYPE_INT);
	if (arr->capacity != 4) { return 2; }
	ahoy_array_push(arr, 20, AHOY_TYPE_INT);
	ahoy_array_push(arr, 30, AHOY_TYPE_INT);
	ahoy_array_push(arr, 40, AHOY_TYPE_INT);
	if (arr->capacity != 4) { return 3; }
	ahoy_array_push(arr, 50, AHOY_TYPE_INT);
	if (arr->capacity != 8) { return 4; }
	if (arr->length != 5) { return 5; }
	if (ahoy_array_get(arr, 2) != 30) { return 6; }
	return 0;
}`)
	if status != 0 {
		t.Errorf("check %d failed", status)
	}
}

func TestIntptrRoundTripPreservesObject(t *testing.T) {
	status, _ := run(t, cardSource+`
int main(void) {
	CardData* card = card_create();
	intptr_t handle = (intptr_t)card;
	CardData* back = (CardData*)handle;
	if (back->health != 3) { return 2; }
	if (back->range != 1) { return 3; }
	return back->__arc_refcount;
}`)
	if status != 1 {
		t.Errorf("refcount after round trip = %d, want 1", status)
	}
}

func TestPrintfOutput(t *testing.T) {
	_, out := run(t, `
int main(void) {
	int hp = 3;
	printf("health=%d move=%c%%\n", hp, 'n');
	return 0;
}`)
	want := "health=3 move=n%\n"
	if out != want {
		t.Errorf("printed %q, want %q", out, want)
	}
}

func TestLoopsAndShortCircuit(t *testing.T) {
	status, _ := run(t, `
int main(void) {
	int sum = 0;
	for (int i = 0; i < 5; i++) {
		sum += i;
	}
	int guard = 0;
	if (sum == 10 && ({ guard = 1; guard; })) {
		return sum;
	}
	return -1;
}`)
	if status != 10 {
		t.Errorf("main returned %d, want 10", status)
	}
}

func TestWhileWithBreakAndContinue(t *testing.T) {
	status, _ := run(t, `
int main(void) {
	int i = 0;
	int odd = 0;
	while (true) {
		i++;
		if (i >= 10) { break; }
		if (i % 2 == 0) { continue; }
		odd += i;
	}
	return odd;
}`)
	if status != 25 {
		t.Errorf("sum of odd numbers below 10 = %d, want 25", status)
	}
}

func TestDivisionByZeroFails(t *testing.T) {
	var out bytes.Buffer
	m := New(compile(t, `
int main(void) {
	int zero = 0;
	return 1 / zero;
}`), &out)
	if _, err := m.Run(); err == nil {
		t.Fatal("expected a runtime error")
	}
}
