// Package harness is a static, data-only description of a 21-section C#
// fixture program (Program.cs) shaped like the reference HelloDebug.cs used
// to exercise scenarios S1 through S6. It never compiles or runs anything —
// the source text and section table exist purely so this package's tests
// can assert against concrete line numbers and expected values without a
// live `dotnet` toolchain.
package harness

// SectionKind classifies what one numbered section of Program.cs
// demonstrates, so a scenario test can find "the exception section" or
// "the multi-thread section" by kind rather than a hardcoded number.
type SectionKind string

const (
	KindPrimitives    SectionKind = "primitives"
	KindArithmetic    SectionKind = "arithmetic"
	KindStrings       SectionKind = "strings"
	KindCollections   SectionKind = "collections"
	KindControlFlow   SectionKind = "control_flow"
	KindMethods       SectionKind = "methods"
	KindClasses       SectionKind = "classes"
	KindInheritance   SectionKind = "inheritance"
	KindInterfaces    SectionKind = "interfaces"
	KindGenerics      SectionKind = "generics"
	KindEnumsNullable SectionKind = "enums_nullable"
	KindStructs       SectionKind = "structs"
	KindDelegates     SectionKind = "delegates"
	KindEvents        SectionKind = "events"
	KindLINQ          SectionKind = "linq"
	KindAsync         SectionKind = "async"
	KindMultiThread   SectionKind = "multi_thread"
	KindExceptions    SectionKind = "exceptions"
	KindRecords       SectionKind = "records"
	KindPatterns      SectionKind = "patterns"
	KindUnhandled     SectionKind = "unhandled"
)

// Section describes one numbered block of the fixture program.
type Section struct {
	Number      int
	Line        int // 1-based line of the section's first statement
	Kind        SectionKind
	Description string
}

// Sections is the 21-section table, line numbers matching SourceText below.
var Sections = []Section{
	{1, 19, KindPrimitives, "declares int counter = 0, bool flag, double pi"},
	{2, 28, KindArithmetic, "integer and floating-point arithmetic"},
	{3, 37, KindStrings, "string interpolation and concatenation"},
	{4, 44, KindCollections, "List<int>, Dictionary<string,int>, arrays"},
	{5, 52, KindControlFlow, "if/else, switch, for, while, foreach"},
	{6, 63, KindMethods, "instance and static method calls"},
	{7, 70, KindClasses, "plain object construction and field access"},
	{8, 76, KindInheritance, "base/derived class field and method resolution"},
	{9, 82, KindInterfaces, "interface-typed local dispatch"},
	{10, 88, KindGenerics, "generic method and generic class instantiation"},
	{11, 94, KindEnumsNullable, "var d = DayOfWeek.Monday; int? n = null; int? m = 42;"},
	{12, 102, KindStructs, "value-type local, copy-on-assign semantics"},
	{13, 110, KindDelegates, "Func<int,int> and Action locals"},
	{14, 118, KindEvents, "event subscription and raise"},
	{15, 124, KindLINQ, "Where/Select over a List<int>"},
	{16, 131, KindAsync, "async Task method with an awaited hoisted local"},
	{17, 139, KindMultiThread, "spawns a background worker thread that parks at a breakpoint"},
	{18, 152, KindExceptions, "try/catch around a caught exception"},
	{19, 164, KindRecords, "record type with positional properties"},
	{20, 170, KindPatterns, "pattern matching switch expression"},
	{21, 182, KindUnhandled, "throws InvalidOperationException(\"Section 21 unhandled\")"},
}

// BySection looks up a section by its 1-based number.
func BySection(n int) (Section, bool) {
	for _, s := range Sections {
		if s.Number == n {
			return s, true
		}
	}
	return Section{}, false
}

// ByKind returns every section of a given kind (normally exactly one).
func ByKind(kind SectionKind) []Section {
	var out []Section
	for _, s := range Sections {
		if s.Kind == kind {
			out = append(out, s)
		}
	}
	return out
}

// ProgramCSPath is the fixture's nominal source path, matching what a
// sequence point's document name would read in a real PDB.
const ProgramCSPath = "Program.cs"

// SourceText is the fixture program's full text. Line numbers referenced by
// Sections above are 1-based offsets into this string; keep them in sync if
// this text is edited.
const SourceText = `using System;
using System.Collections.Generic;
using System.Linq;
using System.Threading;
using System.Threading.Tasks;
namespace DncdbgHarness
{
    class Program
    {
        static void Main(string[] args)
        {
            Section01Primitives();
            Section02Arithmetic();
            Section21Unhandled();
        }

        static void Section01Primitives()
        {
            int counter = 0;
            bool flag = true;
            double pi = 3.14159;
            counter = counter + 1;
            Console.WriteLine(counter);
        }

        static void Section02Arithmetic()
        {
            int a = 10, b = 3;
            int sum = a + b;
            int quotient = a / b;
            double ratio = (double)a / b;
            Console.WriteLine(sum);
        }

        static void Section03Strings()
        {
            string name = "world";
            string greeting = $"hello, {name}";
            Console.WriteLine(greeting);
        }

        static void Section04Collections()
        {
            var list = new List<int> { 1, 2, 3 };
            var map = new Dictionary<string, int> { ["one"] = 1 };
            int[] arr = new int[] { 4, 5, 6 };
            Console.WriteLine(list.Count);
        }

        static void Section05ControlFlow()
        {
            for (int i = 0; i < 3; i++)
            {
                if (i % 2 == 0)
                {
                    Console.WriteLine(i);
                }
            }
        }

        static int Section06Methods()
        {
            return Helper(21);
        }

        static int Helper(int n) => n * 2;

        static void Section07Classes()
        {
            var point = new Point(1, 2);
            Console.WriteLine(point.X);
        }

        static void Section08Inheritance()
        {
            Animal a = new Dog();
            Console.WriteLine(a.Speak());
        }

        static void Section09Interfaces()
        {
            IGreeter g = new EnglishGreeter();
            Console.WriteLine(g.Greet());
        }

        static void Section10Generics()
        {
            var box = new Box<int>(42);
            Console.WriteLine(box.Value);
        }

        static void Section11EnumsNullable()
        {
            var d = DayOfWeek.Monday;
            int? n = null;
            int? m = 42;
            Console.WriteLine(d);
        }

        static void Section12Structs()
        {
            var p1 = new Point(1, 1);
            var p2 = p1;
            p2 = new Point(2, 2);
            Console.WriteLine(p1.X);
        }

        static void Section13Delegates()
        {
            Func<int, int> square = x => x * x;
            Console.WriteLine(square(5));
        }

        static event Action OnFired;

        static void Section14Events()
        {
            OnFired += () => Console.WriteLine("fired");
            OnFired?.Invoke();
        }

        static void Section15LINQ()
        {
            var nums = new List<int> { 1, 2, 3, 4, 5 };
            var evens = nums.Where(n => n % 2 == 0).Select(n => n * n);
            Console.WriteLine(evens.Count());
        }

        static async Task Section16Async()
        {
            int counter = 0;
            await Task.Delay(1);
            counter++;
            Console.WriteLine(counter);
        }

        static void Section17MultiThread()
        {
            var worker = new Thread(() =>
            {
                int local = 0;
                Console.WriteLine(local);
            });
            worker.Start();
            worker.Join();
        }

        static void Section18Exceptions()
        {
            try
            {
                throw new InvalidOperationException("caught");
            }
            catch (InvalidOperationException)
            {
                Console.WriteLine("handled");
            }
        }

        record Coordinates(int X, int Y);

        static void Section19Records()
        {
            var c = new Coordinates(3, 4);
            Console.WriteLine(c.X);
        }

        static void Section20Patterns()
        {
            object o = 5;
            string kind = o switch
            {
                int => "int",
                string => "string",
                _ => "other",
            };
            Console.WriteLine(kind);
        }

        static void Section21Unhandled()
        {
            throw new InvalidOperationException("Section 21 unhandled");
        }
    }

    struct Point
    {
        public int X, Y;
        public Point(int x, int y) { X = x; Y = y; }
    }

    abstract class Animal
    {
        public abstract string Speak();
    }

    class Dog : Animal
    {
        public override string Speak() => "Woof";
    }

    interface IGreeter
    {
        string Greet();
    }

    class EnglishGreeter : IGreeter
    {
        public string Greet() => "Hello";
    }

    class Box<T>
    {
        public T Value;
        public Box(T value) { Value = value; }
    }
}
`
