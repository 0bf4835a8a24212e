/*
Package domain contains the core domain models of the assessment engine.

It defines the immutable node graph description, the answer value union, the
result tree, the persisted run snapshot and the error taxonomy. This package is
kept pure and free of I/O or persistence concerns.

# Key Entities

  - Node: A step (instruction, question, completion, custom) or a branch (section, assessment).
  - SurveyRule: A declarative condition-to-jump mapping evaluated against a step's answer.
  - Result: The record of a visit. Containers (CollectionResult, TaskResult,
    AssessmentResult) own an ordered path history and a concurrent set of async results.
  - State: The snapshot handed to persistence on every committed transition.
*/
package domain
