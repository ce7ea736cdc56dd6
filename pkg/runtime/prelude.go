package runtime

// Prelude is the C runtime emitted ahead of any unit that touches the
// tagged array or an ARC-eligible type. The refcount field sits at offset
// zero of every ARC-eligible struct, so the helpers address it through a
// plain int pointer.
const Prelude = `typedef enum {
    AHOY_TYPE_INT,
    AHOY_TYPE_STRING,
    AHOY_TYPE_STRUCT
} AhoyValueType;

typedef struct {
    intptr_t* data;
    AhoyValueType* types;
    int length;
    int capacity;
} AhoyArray;

static AhoyArray* ahoy_array_new(void) {
    AhoyArray* arr = malloc(sizeof(AhoyArray));
    arr->data = malloc(0);
    arr->types = malloc(0);
    arr->length = 0;
    arr->capacity = 0;
    return arr;
}

static AhoyArray* ahoy_array_push(AhoyArray* arr, intptr_t value, AhoyValueType type) {
    if (arr->length >= arr->capacity) {
        arr->capacity = arr->capacity == 0 ? 4 : arr->capacity * 2;
        arr->data = realloc(arr->data, arr->capacity * sizeof(intptr_t));
        arr->types = realloc(arr->types, arr->capacity * sizeof(AhoyValueType));
    }
    arr->data[arr->length] = value;
    arr->types[arr->length] = type;
    arr->length++;
    return arr;
}

static intptr_t ahoy_array_get(AhoyArray* arr, int index) {
    return arr->data[index];
}

static void ahoy_retain(void* obj) {
    ++*(int*)obj;
}

static void ahoy_release(void* obj) {
    if (--*(int*)obj == 0) {
        free(obj);
    }
}
`
